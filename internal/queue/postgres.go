package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresQueue is a Postgres-backed Queue. Delivery uses
// FOR UPDATE SKIP LOCKED so concurrent workers never receive the same
// message, and a visibility lease so crashed workers get redelivery.
type PostgresQueue struct {
	db    *pgxpool.Pool
	lease time.Duration
}

func NewPostgresQueue(db *pgxpool.Pool, lease time.Duration) *PostgresQueue {
	if lease <= 0 {
		lease = 5 * time.Minute
	}
	return &PostgresQueue{db: db, lease: lease}
}

// Publish inserts a message visible immediately.
func (q *PostgresQueue) Publish(ctx context.Context, topic string, payload any) error {
	data, err := Encode(payload)
	if err != nil {
		return err
	}

	_, err = q.db.Exec(ctx, `
		INSERT INTO queue_messages (id, topic, payload, attempts, visible_at, created_at)
		VALUES ($1, $2, $3, 0, NOW(), NOW())`,
		uuid.New(), topic, data,
	)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Receive claims the oldest visible message of a topic, bumping its attempt
// count and pushing its visibility out by the lease.
func (q *PostgresQueue) Receive(ctx context.Context, topic string) (*Message, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE queue_messages
		SET attempts = attempts + 1,
		    visible_at = NOW() + make_interval(secs => $2),
		    locked_at = NOW()
		WHERE id = (
			SELECT id FROM queue_messages
			WHERE topic = $1 AND visible_at <= NOW()
			ORDER BY created_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, topic, payload, attempts`,
		topic, q.lease.Seconds(),
	)

	var msg Message
	if err := row.Scan(&msg.ID, &msg.Topic, &msg.Payload, &msg.Attempts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("receive from %s: %w", topic, err)
	}
	return &msg, nil
}

// Ack deletes a handled message.
func (q *PostgresQueue) Ack(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM queue_messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ack message %s: %w", id, err)
	}
	return nil
}

// Nack schedules a redelivery after the given delay.
func (q *PostgresQueue) Nack(ctx context.Context, id uuid.UUID, delay time.Duration) error {
	_, err := q.db.Exec(ctx, `
		UPDATE queue_messages
		SET visible_at = NOW() + make_interval(secs => $2), locked_at = NULL
		WHERE id = $1`,
		id, delay.Seconds(),
	)
	if err != nil {
		return fmt.Errorf("nack message %s: %w", id, err)
	}
	return nil
}

// RequeueExpired clears the lock marker on messages whose lease has lapsed
// without an ack, returning how many were affected. Redelivery itself follows
// from visible_at; the sweeper keeps lock state tidy and observable.
func (q *PostgresQueue) RequeueExpired(ctx context.Context) (int, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE queue_messages
		SET visible_at = NOW(), locked_at = NULL
		WHERE locked_at IS NOT NULL AND visible_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("requeue expired: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
