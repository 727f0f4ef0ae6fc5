package httpx

import "regexp"

type sensitiveDataMasker interface {
	Mask([]byte) []byte
}

//nolint:gochecknoglobals
var sensitiveDataPatterns = []*regexp.Regexp{
	// Authorization: <address>:<signature>
	regexp.MustCompile(`(?m)(Authorization: [^:\r\n]+:).+?(\r?$)`),
	regexp.MustCompile(`(?s)("signature":\s?").+?(")`),
	regexp.MustCompile(`(?s)("transfer":\s?").+?(")`),
	regexp.MustCompile(`(signature=)[^&\s]+()`),
}

// SensitiveDataMasker hides signatures and signed extrinsics in dumps.
type SensitiveDataMasker struct{}

func NewSensitiveDataMasker() SensitiveDataMasker {
	return SensitiveDataMasker{}
}

func (SensitiveDataMasker) Mask(input []byte) []byte {
	for _, pattern := range sensitiveDataPatterns {
		input = pattern.ReplaceAll(input, []byte("${1}[MASKED]${2}"))
	}
	return input
}

type nopSensitiveDataMasker struct{}

func (nopSensitiveDataMasker) Mask(input []byte) []byte {
	return input
}
