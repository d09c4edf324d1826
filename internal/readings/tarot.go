package readings

import "math/rand/v2"

type Card struct {
	Number int    `json:"number"`
	Name   string `json:"name"`

	upright  string
	reversed string
}

var MajorArcana = []Card{
	{0, "O Louco", "novos começos e espontaneidade", "imprudência e hesitação"},
	{1, "O Mago", "vontade, habilidade e manifestação", "manipulação e talentos desperdiçados"},
	{2, "A Sacerdotisa", "intuição e mistério", "segredos e desconexão interior"},
	{3, "A Imperatriz", "fertilidade, abundância e cuidado", "dependência e bloqueio criativo"},
	{4, "O Imperador", "estrutura, autoridade e estabilidade", "rigidez e controle excessivo"},
	{5, "O Hierofante", "tradição e orientação espiritual", "rebeldia e novos caminhos"},
	{6, "Os Enamorados", "amor, união e escolhas", "desarmonia e indecisão"},
	{7, "O Carro", "determinação e vitória", "falta de direção"},
	{8, "A Força", "coragem, paciência e compaixão", "insegurança e impulsividade"},
	{9, "O Eremita", "introspecção e sabedoria", "isolamento e solidão"},
	{10, "A Roda da Fortuna", "ciclos, destino e mudança", "resistência à mudança"},
	{11, "A Justiça", "equilíbrio, verdade e causa e efeito", "injustiça e desonestidade"},
	{12, "O Enforcado", "pausa, entrega e nova perspectiva", "estagnação e sacrifício inútil"},
	{13, "A Morte", "transformação e encerramento", "medo de mudar"},
	{14, "A Temperança", "moderação e harmonia", "excessos e desequilíbrio"},
	{15, "O Diabo", "apegos e desejos", "libertação de amarras"},
	{16, "A Torre", "ruptura e revelação", "mudança adiada"},
	{17, "A Estrela", "esperança, fé e renovação", "desânimo e falta de fé"},
	{18, "A Lua", "ilusão, sonhos e intuição", "confusão que se dissipa"},
	{19, "O Sol", "alegria, sucesso e vitalidade", "otimismo abalado"},
	{20, "O Julgamento", "despertar e renascimento", "autocrítica e dúvida"},
	{21, "O Mundo", "completude e realização", "ciclos inacabados"},
}

type DrawnCard struct {
	Card
	Reversed bool   `json:"reversed"`
	Position string `json:"position,omitempty"`
	Meaning  string `json:"meaning"`
}

var spreadPositions = map[int][]string{
	1: {"Conselho"},
	3: {"Passado", "Presente", "Futuro"},
}

// Randomizer is satisfied by *rand.Rand from math/rand/v2.
type Randomizer interface {
	Perm(n int) []int
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) Perm(n int) []int { return rand.Perm(n) }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

// DrawCards draws a spread from the Major Arcana without repeating cards.
// Each card comes out reversed with probability one half.
func DrawCards(rng Randomizer, spread int) []DrawnCard {
	positions := spreadPositions[spread]
	order := rng.Perm(len(MajorArcana))

	cards := make([]DrawnCard, 0, len(positions))
	for i, pos := range positions {
		c := MajorArcana[order[i]]
		reversed := rng.IntN(2) == 1
		meaning := c.upright
		if reversed {
			meaning = c.reversed
		}
		cards = append(cards, DrawnCard{Card: c, Reversed: reversed, Position: pos, Meaning: meaning})
	}
	return cards
}
