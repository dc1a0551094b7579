package tokenizer

import (
	"strings"
	"testing"
)

var sampleTexts = map[string]string{
	"short": "How do I reset my password?",
	"medium": `To connect to the VPN, open the client and sign in with your staff
account. If the connection drops, check that your laptop clock is correct and
that you are not on a guest network. Contact the service desk if it still fails.`,
	"long": strings.Repeat(`Printers on every floor accept jobs from the secure print
queue. Release a job by tapping your badge at any device. Jobs that are not
released within twelve hours are deleted. Colour printing needs approval from
your team lead. `, 20),
}

func BenchmarkTokenize(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Tokenize(text)
			}
		})
	}
}

func BenchmarkTokenizeStemming(b *testing.B) {
	analyzer := Analyzer{Stemming: true}
	text := sampleTexts["long"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for i := 0; i < b.N; i++ {
		_ = analyzer.Tokenize(text)
	}
}
