// Package suggest drains the category-suggestion queue, matching extracted
// transaction descriptions against a built-in category vocabulary.
package suggest

// Category is one entry of the built-in suggestion catalog. Keywords are
// matched case- and accent-insensitively against transaction descriptions.
type Category struct {
	Name     string
	Keywords []string
}

// DefaultCatalog returns the built-in categories. Keywords cover Spanish,
// Portuguese and English descriptions, matching the vocabularies the
// extraction stages understand.
func DefaultCatalog() []Category {
	return []Category{
		{
			Name: "Subscriptions",
			Keywords: []string{
				"netflix", "spotify", "disney", "hbo", "youtube premium",
				"amazon prime", "apple.com", "icloud", "suscripcion", "assinatura",
			},
		},
		{
			Name: "Groceries",
			Keywords: []string{
				"exito", "carulla", "jumbo", "olimpica", "d1", "ara",
				"supermercado", "mercado", "grocery", "carrefour",
			},
		},
		{
			Name: "Dining",
			Keywords: []string{
				"restaurante", "rappi", "ifood", "uber eats", "didi food",
				"mcdonald", "burger", "pizzeria", "cafe", "panaderia",
			},
		},
		{
			Name: "Transport",
			Keywords: []string{
				"uber", "didi", "cabify", "taxi", "transmilenio", "metro",
				"gasolina", "terpel", "primax", "peaje", "parqueadero", "estacionamiento",
			},
		},
		{
			Name: "Utilities",
			Keywords: []string{
				"epm", "enel", "codensa", "acueducto", "claro", "movistar",
				"tigo", "wom", "etb", "internet", "energia", "gas natural",
			},
		},
		{
			Name: "Health",
			Keywords: []string{
				"farmacia", "drogueria", "cruz verde", "farmatodo", "eps",
				"clinica", "laboratorio", "medicina", "odontologia",
			},
		},
		{
			Name: "Entertainment",
			Keywords: []string{
				"cine", "cinema", "teatro", "steam", "playstation", "xbox",
				"nintendo", "concierto", "boleta",
			},
		},
		{
			Name: "Shopping",
			Keywords: []string{
				"falabella", "amazon", "mercadolibre", "alkosto", "ktronix",
				"zara", "tienda", "almacen", "shein", "aliexpress",
			},
		},
		{
			Name: "Housing",
			Keywords: []string{
				"arriendo", "alquiler", "aluguel", "hipoteca", "administracion",
				"inmobiliaria", "condominio",
			},
		},
		{
			Name: "Fees",
			Keywords: []string{
				"cuota de manejo", "comision", "iva", "gmf", "4x1000",
				"interes", "seguro", "tarifa", "cargo fijo",
			},
		},
		{
			Name: "Income",
			Keywords: []string{
				"nomina", "salario", "pago nomina", "honorarios", "salary",
				"payroll", "rendimientos", "dividendos",
			},
		},
		{
			Name: "Transfers",
			Keywords: []string{
				"transferencia", "transfer", "nequi", "daviplata", "pse",
				"envio de dinero", "giro", "ted", "doc", "pix",
			},
		},
	}
}
