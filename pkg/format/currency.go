package format

// currencySymbols maps ISO currency codes to display symbols.
var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CNY": "¥",
	"INR": "₹",
	"CAD": "C$",
	"AUD": "A$",
	"CHF": "CHF ",
	"SEK": "kr ",
	"BRL": "R$",
}

// symbols lists every symbol so ParseNumber can strip them.
var symbols = []string{"C$", "A$", "R$", "$", "€", "£", "¥", "₹", "CHF", "kr"}

// Symbol returns the display symbol for a currency code, defaulting to
// the dollar sign.
func Symbol(code string) string {
	if s, ok := currencySymbols[code]; ok {
		return s
	}
	return "$"
}
