package calls

import "unicode/utf8"

const (
	IDMaxLength    = 255
	TextMaxLength  = 255
	TokenMaxLength = 32
)

// ValidID reports a non-empty id of at most IDMaxLength characters.
func ValidID(id string) bool {
	n := utf8.RuneCountInString(id)
	return n > 0 && n <= IDMaxLength
}

// ValidText accepts an absent text, otherwise at most TextMaxLength characters.
func ValidText(text string) bool {
	return utf8.RuneCountInString(text) <= TextMaxLength
}

// ValidShortToken is used for owner and provider types.
func ValidShortToken(v string) bool {
	n := utf8.RuneCountInString(v)
	return n > 0 && n <= TokenMaxLength
}
