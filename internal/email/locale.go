package email

import "strings"

const defaultLocale = "en"

var localeByTLD = map[string]string{
	"fr": "fr",
	"de": "de",
	"at": "de",
	"es": "es",
}

// LocaleFor выбирает язык письма по домену получателя
func LocaleFor(address string) string {
	at := strings.LastIndex(address, "@")
	if at < 0 {
		return defaultLocale
	}
	domain := strings.ToLower(address[at+1:])
	dot := strings.LastIndex(domain, ".")
	if dot < 0 {
		return defaultLocale
	}
	if loc, ok := localeByTLD[domain[dot+1:]]; ok {
		return loc
	}
	return defaultLocale
}
