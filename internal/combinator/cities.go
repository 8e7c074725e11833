package combinator

import "strings"

// destByCity maps a lowercase city name to the catalog's destination
// region code. Used when a stored query record predates the dest column.
var destByCity = map[string]string{
	"москва":          "-1257786",
	"санкт-петербург": "-1181032",
	"новосибирск":     "-364763",
	"екатеринбург":    "-5817698",
	"казань":          "-2133463",
	"краснодар":       "12358062",
	"ростов-на-дону":  "-2079847",
	"хабаровск":       "-1221148",
}

// defaultDest is used when the city is unknown; tracking against the
// primary region beats dropping the combination.
const defaultDest = "-1257786"

// DestForCity resolves a destination region code from a city name.
func DestForCity(city string) string {
	if dest, ok := destByCity[strings.ToLower(strings.TrimSpace(city))]; ok {
		return dest
	}
	return defaultDest
}
