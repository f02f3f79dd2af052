package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldDisclose(t *testing.T) {
	cases := []struct {
		name      string
		selected  bool
		msg       string
		disclosed bool
		want      bool
	}{
		{"pix with selection", true, "me manda o pix", false, true},
		{"no selection", false, "me manda o pix", false, false},
		{"thanks only", true, "thanks, that's all", false, false},
		{"obrigado only", true, "Obrigado!", true, false},
		{"thanks and pix after disclosure", true, "thanks for the pix", true, false},
		{"thanks and pix before disclosure", true, "valeu, manda o pix", false, true},
		{"accented keyword", true, "Qual a COBRANÇA deste mês?", false, true},
		{"english", true, "can I pay my bill?", false, true},
		{"word boundary", true, "uso paypal e pixel", false, false},
		{"multi word", true, "qual a linha digitável?", false, true},
		{"bare codigo", true, "manda o código", false, true},
		{"bare code", true, "send me the code please", false, true},
		{"code in another word", true, "meu zipcode mudou", false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ShouldDisclose(tc.selected, tc.msg, tc.disclosed))
		})
	}
}

func TestIsClosing(t *testing.T) {
	assert.True(t, IsClosing("Até mais!"))
	assert.True(t, IsClosing("não preciso de mais nada"))
	assert.True(t, IsClosing("ok"))
	assert.False(t, IsClosing("okay then, send the code"))
	assert.False(t, IsClosing("minha internet caiu"))
}

func TestFoldStripsAccents(t *testing.T) {
	assert.Equal(t, "cobranca digitavel", fold("Cobrança Digitável"))
}
