package pii

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPseudonymizeEmail(t *testing.T) {
	out := Pseudonymize("Mi correo es maria.garcia@example.com, escríbeme ahí")
	require.Equal(t, "Mi correo es [correo], escríbeme ahí", out)
}

func TestPseudonymizePhone(t *testing.T) {
	cases := []string{
		"llámame al 612345678",
		"llámame al +34 612 345 678",
		"llámame al 612-345-678",
	}
	for _, input := range cases {
		out := Pseudonymize(input)
		require.Contains(t, out, "[teléfono]", "input: %s", input)
		require.NotContains(t, out, "612", "input: %s", input)
	}
}

func TestPseudonymizeDNIAndNIE(t *testing.T) {
	require.Equal(t, "Mi DNI es [dni]", Pseudonymize("Mi DNI es 12345678Z"))
	require.Equal(t, "Mi NIE es [dni]", Pseudonymize("Mi NIE es X1234567L"))
}

func TestPseudonymizeIBAN(t *testing.T) {
	out := Pseudonymize("Cuenta: ES91 2100 0418 4502 0005 1332 ")
	require.Contains(t, out, "[iban]")
	require.NotContains(t, out, "2100")
}

func TestPseudonymizeLeavesCleanTextUntouched(t *testing.T) {
	input := "He recibido una notificación de desahucio y no sé qué plazos tengo"
	require.Equal(t, input, Pseudonymize(input))
}

func TestPseudonymizeMultipleMatches(t *testing.T) {
	out := Pseudonymize("Soy juan@example.com, DNI 87654321X, tel 698765432")
	require.Equal(t, "Soy [correo], DNI [dni], tel [teléfono]", out)
}

func TestPseudonymizeMessagesCopies(t *testing.T) {
	in := []string{"correo: a@b.es", "sin datos"}
	out := PseudonymizeMessages(in)
	require.Equal(t, []string{"correo: [correo]", "sin datos"}, out)
	require.Equal(t, "correo: a@b.es", in[0])
}
