package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidCPF_CanonicalFixtures(t *testing.T) {
	valid := []string{
		"529.982.247-25",
		"52998224725",
		"168.995.350-09",
		"853.513.468-93",
	}
	for _, cpf := range valid {
		assert.True(t, ValidCPF(cpf), "expected %q to be valid", cpf)
	}

	invalid := []string{
		"",
		"123",
		"529.982.247-26",     // wrong second check digit
		"529.982.257-25",     // mutated body digit
		"111.111.111-11",     // repeated digits with "valid" check digits
		"000.000.000-00",
		"99999999999",
		"5299822472",         // 10 digits
		"529982247255",       // 12 digits
	}
	for _, cpf := range invalid {
		assert.False(t, ValidCPF(cpf), "expected %q to be invalid", cpf)
	}
}

func TestValidCPF_SingleDigitMutationsOfValid(t *testing.T) {
	const base = "52998224725"
	for pos := 0; pos < len(base); pos++ {
		mutated := []byte(base)
		mutated[pos] = '0' + (mutated[pos]-'0'+1)%10
		assert.False(t, ValidCPF(string(mutated)), "mutation at %d should fail", pos)
	}
}

func TestCPF_Message(t *testing.T) {
	assert.Equal(t, "", CPF("529.982.247-25"))
	assert.Equal(t, MsgInvalidCPF, CPF("529.982.247-26"))
}
