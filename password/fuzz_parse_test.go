package password

import "testing"

// FuzzParse feeds arbitrary strings to the PHC parser.
// Goal: no panics; anything accepted must re-parse to an equal value.
func FuzzParse(f *testing.F) {
	for _, seed := range canonicalHashes {
		f.Add(seed)
	}
	f.Add("")
	f.Add("$")
	f.Add("$$$$")
	f.Add("$argon2id$v=$m=,t=,p=$$")
	f.Add("$argon2id$v=4294967296")
	f.Add("$2b$c=10$b0tmWkRkdUNuN1ZsbVVSSw$")

	f.Fuzz(func(t *testing.T, input string) {
		h, err := Parse(input)
		if err != nil {
			return
		}
		again, err := Parse(h.String())
		if err != nil {
			t.Fatalf("serialized form %q rejected: %v", h.String(), err)
		}
		if !again.Equal(h) {
			t.Fatalf("accepted input does not round trip: %q -> %q", input, h.String())
		}
		// Projection must not panic either.
		_, _ = h.AlgorithmParams()
	})
}
