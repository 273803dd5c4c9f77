package protect

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrBadPassword marks a decryption failure caused by a wrong user password,
// distinct from generic input failures so callers can re-prompt.
var ErrBadPassword = errors.New("wrong file password")

// IsPDF reports whether the bytes carry a PDF signature.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

// IsEncryptedPDF reports whether a PDF refuses to validate without a
// password.
func IsEncryptedPDF(data []byte) bool {
	if !IsPDF(data) {
		return false
	}
	conf := model.NewDefaultConfiguration()
	err := api.Validate(bytes.NewReader(data), conf)
	return err != nil && isPasswordErr(err)
}

// DecryptPDF removes the encryption layer from a password-protected PDF so
// downstream text extraction can run on plain bytes.
func DecryptPDF(data []byte, password string) ([]byte, error) {
	conf := model.NewDefaultConfiguration()
	conf.UserPW = password
	conf.OwnerPW = password

	var out bytes.Buffer
	if err := api.Decrypt(bytes.NewReader(data), &out, conf); err != nil {
		if isPasswordErr(err) {
			return nil, ErrBadPassword
		}
		return nil, fmt.Errorf("decrypt pdf: %w", err)
	}
	return out.Bytes(), nil
}

func isPasswordErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "password") || strings.Contains(msg, "encrypt")
}
