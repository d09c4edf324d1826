package readings

import (
	"time"

	"guia_service/internal/utils"
)

func isMaster(n int) bool {
	return n == 11 || n == 22 || n == 33
}

// reduce sums digits until a single digit or a master number remains.
func reduce(n int) int {
	for n > 9 && !isMaster(n) {
		sum := 0
		for n > 0 {
			sum += n % 10
			n /= 10
		}
		n = sum
	}
	return n
}

// LifePathNumber reduces day, month and year separately and then their sum,
// keeping master numbers at every step.
func LifePathNumber(birth time.Time) int {
	return reduce(reduce(birth.Day()) + reduce(int(birth.Month())) + reduce(birth.Year()))
}

// ExpressionNumber uses the Pythagorean table (a=1 ... i=9, j=1 ...).
// Accents are ignored and anything that is not a letter is skipped.
func ExpressionNumber(fullName string) int {
	total := 0
	for _, r := range utils.NormalizeKey(fullName) {
		if r >= 'a' && r <= 'z' {
			total += int(r-'a')%9 + 1
		}
	}
	return reduce(total)
}

var numberMeanings = map[int]string{
	1:  "Liderança, independência e coragem para começar ciclos novos.",
	2:  "Cooperação, sensibilidade e talento para unir pessoas.",
	3:  "Criatividade, comunicação e alegria de viver.",
	4:  "Estabilidade, disciplina e construção de bases sólidas.",
	5:  "Liberdade, movimento e sede de experiências.",
	6:  "Cuidado, responsabilidade e amor pela família.",
	7:  "Introspecção, espiritualidade e busca pela verdade.",
	8:  "Realização material, poder pessoal e ambição equilibrada.",
	9:  "Compaixão, generosidade e encerramento de ciclos.",
	11: "Número mestre da intuição e da inspiração espiritual.",
	22: "Número mestre do construtor de grandes sonhos.",
	33: "Número mestre do amor incondicional e do serviço.",
}

// NumberMeaning returns a short description of a reduced number.
func NumberMeaning(n int) string {
	return numberMeanings[n]
}
