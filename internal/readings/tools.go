package readings

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"guia_service/internal/store"
)

var (
	ErrUnknownTool      = errors.New("unknown tool")
	ErrInvalidInput     = errors.New("invalid input")
	ErrGenerationFailed = errors.New("reading generation failed")
)

const maxDreamLength = 2000

// Tool is one paid reading. Prepare validates the input and returns
// everything Generate needs before the model is called.
type Tool struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Cost        int64  `json:"cost"`

	prepare func(in map[string]string, env toolEnv) (*prepared, error)
}

type toolEnv struct {
	now  time.Time
	rng  Randomizer
	user *store.User
}

type prepared struct {
	prompt string
	// computed values are merged over the model output
	computed map[string]interface{}
	fallback map[string]interface{}
}

const jsonInstructions = `
Responda somente com um objeto JSON válido, sem markdown e sem texto fora do JSON.`

var catalog = []Tool{
	{
		Name:        "horoscope",
		Title:       "Horóscopo",
		Description: "Previsão para o seu signo no período escolhido.",
		Cost:        10,
		prepare:     prepareHoroscope,
	},
	{
		Name:        "tarot",
		Title:       "Tarot",
		Description: "Tiragem dos Arcanos Maiores para a sua pergunta.",
		Cost:        15,
		prepare:     prepareTarot,
	},
	{
		Name:        "numerology",
		Title:       "Numerologia",
		Description: "Número do caminho de vida e número de expressão.",
		Cost:        20,
		prepare:     prepareNumerology,
	},
	{
		Name:        "dream",
		Title:       "Interpretação de sonhos",
		Description: "O significado simbólico do seu sonho.",
		Cost:        15,
		prepare:     prepareDream,
	},
	{
		Name:        "compatibility",
		Title:       "Compatibilidade amorosa",
		Description: "A sintonia entre dois signos.",
		Cost:        25,
		prepare:     prepareCompatibility,
	},
}

// Tools returns the catalog in display order.
func Tools() []Tool {
	out := make([]Tool, len(catalog))
	copy(out, catalog)
	return out
}

func LookupTool(name string) (Tool, error) {
	for _, t := range catalog {
		if t.Name == name {
			return t, nil
		}
	}
	return Tool{}, fmt.Errorf("%w: %q", ErrUnknownTool, name)
}

func required(in map[string]string, keys ...string) error {
	for _, k := range keys {
		if strings.TrimSpace(in[k]) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidInput, k)
		}
	}
	return nil
}

var periods = map[string]string{
	"daily":   "hoje",
	"weekly":  "esta semana",
	"monthly": "este mês",
}

// resolveSign takes the sign from the input, then from the user's profile.
func resolveSign(value string, env toolEnv) (Sign, error) {
	if strings.TrimSpace(value) != "" {
		s, ok := ParseSign(value)
		if !ok {
			return Sign{}, fmt.Errorf("%w: unknown sign %q", ErrInvalidInput, value)
		}
		return s, nil
	}
	if env.user != nil {
		if s, ok := ParseSign(env.user.ZodiacSign); ok {
			return s, nil
		}
		if env.user.BirthDate != "" {
			if birth, err := ParseBirthDate(env.user.BirthDate, env.now); err == nil {
				return SignFromDate(birth), nil
			}
		}
	}
	return Sign{}, fmt.Errorf("%w: sign is required", ErrInvalidInput)
}

func prepareHoroscope(in map[string]string, env toolEnv) (*prepared, error) {
	sign, err := resolveSign(in["sign"], env)
	if err != nil {
		return nil, err
	}
	period := in["period"]
	if period == "" {
		period = "daily"
	}
	when, ok := periods[period]
	if !ok {
		return nil, fmt.Errorf("%w: period must be daily, weekly or monthly", ErrInvalidInput)
	}

	prompt := fmt.Sprintf(`Você é uma astróloga acolhedora do app Guia do Coração.
Escreva o horóscopo de %s (elemento %s) para %s. Data de referência: %s.
Use o formato:
{
	"summary": "visão geral em 2 ou 3 frases",
	"love": "amor e relacionamentos",
	"career": "trabalho e finanças",
	"health": "saúde e bem-estar",
	"luckyNumber": "número da sorte",
	"luckyColor": "cor da sorte",
	"advice": "conselho do dia"
}`, sign.Name, sign.Element, when, env.now.Format(dateLayout)) + jsonInstructions

	return &prepared{
		prompt:   prompt,
		computed: map[string]interface{}{"sign": sign.Name, "element": string(sign.Element), "period": period},
		fallback: map[string]interface{}{
			"summary":     fmt.Sprintf("As energias de %s pedem calma e atenção ao que o coração sente.", sign.Name),
			"love":        "Demonstre carinho com pequenos gestos.",
			"career":      "Organize as prioridades antes de assumir novos compromissos.",
			"health":      "Reserve um momento para descansar e respirar.",
			"luckyNumber": "7",
			"luckyColor":  "violeta",
			"advice":      "Confie no seu tempo.",
		},
	}, nil
}

func prepareTarot(in map[string]string, env toolEnv) (*prepared, error) {
	if err := required(in, "question"); err != nil {
		return nil, err
	}
	spread := 3
	if s := in["spread"]; s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || (n != 1 && n != 3) {
			return nil, fmt.Errorf("%w: spread must be 1 or 3", ErrInvalidInput)
		}
		spread = n
	}

	cards := DrawCards(env.rng, spread)
	var b strings.Builder
	for _, c := range cards {
		orientation := "em pé"
		if c.Reversed {
			orientation = "invertida"
		}
		fmt.Fprintf(&b, "- %s: %s (%s), %s\n", c.Position, c.Name, orientation, c.Meaning)
	}

	prompt := fmt.Sprintf(`Você é uma taróloga sensível do app Guia do Coração.
Pergunta da pessoa: %s
Cartas tiradas:
%s
Interprete a tiragem no formato:
{
	"summary": "resposta direta à pergunta",
	"cards": [{"name": "nome da carta", "interpretation": "leitura da carta na posição"}],
	"advice": "conselho final"
}`, in["question"], b.String()) + jsonInstructions

	drawn := make([]interface{}, 0, len(cards))
	fallbackCards := make([]interface{}, 0, len(cards))
	for _, c := range cards {
		drawn = append(drawn, map[string]interface{}{
			"number":   c.Number,
			"name":     c.Name,
			"position": c.Position,
			"reversed": c.Reversed,
		})
		fallbackCards = append(fallbackCards, map[string]interface{}{"name": c.Name, "interpretation": c.Meaning})
	}

	return &prepared{
		prompt:   prompt,
		computed: map[string]interface{}{"drawnCards": drawn},
		fallback: map[string]interface{}{
			"summary": "As cartas indicam um momento de escuta interior antes de agir.",
			"cards":   fallbackCards,
			"advice":  "Volte à sua pergunta com o coração aberto.",
		},
	}, nil
}

func prepareNumerology(in map[string]string, env toolEnv) (*prepared, error) {
	if err := required(in, "fullName", "birthDate"); err != nil {
		return nil, err
	}
	birth, err := ParseBirthDate(in["birthDate"], env.now)
	if err != nil {
		return nil, err
	}
	lifePath := LifePathNumber(birth)
	expression := ExpressionNumber(in["fullName"])
	if expression == 0 {
		return nil, fmt.Errorf("%w: fullName has no letters", ErrInvalidInput)
	}

	prompt := fmt.Sprintf(`Você é uma numeróloga do app Guia do Coração.
Nome: %s
Número do caminho de vida: %d
Número de expressão: %d
Explique os números no formato:
{
	"summary": "síntese da personalidade",
	"lifePath": "significado do caminho de vida",
	"expression": "significado do número de expressão",
	"challenges": "desafios",
	"advice": "conselho"
}`, in["fullName"], lifePath, expression) + jsonInstructions

	return &prepared{
		prompt:   prompt,
		computed: map[string]interface{}{"lifePathNumber": lifePath, "expressionNumber": expression},
		fallback: map[string]interface{}{
			"summary":    "Seus números revelam uma combinação única de talentos.",
			"lifePath":   NumberMeaning(lifePath),
			"expression": NumberMeaning(expression),
			"challenges": "Equilibrar o que você deseja com o que você precisa.",
			"advice":     "Honre sua história e siga aprendendo.",
		},
	}, nil
}

func prepareDream(in map[string]string, _ toolEnv) (*prepared, error) {
	if err := required(in, "description"); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(in["description"]) > maxDreamLength {
		return nil, fmt.Errorf("%w: description exceeds %d characters", ErrInvalidInput, maxDreamLength)
	}

	prompt := fmt.Sprintf(`Você interpreta sonhos para o app Guia do Coração, com delicadeza e sem diagnósticos.
Sonho relatado: %s
Interprete no formato:
{
	"summary": "significado geral",
	"symbols": [{"symbol": "elemento do sonho", "meaning": "significado"}],
	"emotions": "emoções envolvidas",
	"advice": "conselho"
}`, in["description"]) + jsonInstructions

	return &prepared{
		prompt:   prompt,
		computed: map[string]interface{}{},
		fallback: map[string]interface{}{
			"summary":  "Seu sonho traz mensagens do inconsciente sobre o momento que você vive.",
			"symbols":  []interface{}{},
			"emotions": "Observe como você se sentiu ao acordar.",
			"advice":   "Anote seus sonhos no diário para perceber padrões.",
		},
	}, nil
}

func prepareCompatibility(in map[string]string, _ toolEnv) (*prepared, error) {
	if err := required(in, "name1", "sign1", "name2", "sign2"); err != nil {
		return nil, err
	}
	s1, ok := ParseSign(in["sign1"])
	if !ok {
		return nil, fmt.Errorf("%w: unknown sign %q", ErrInvalidInput, in["sign1"])
	}
	s2, ok := ParseSign(in["sign2"])
	if !ok {
		return nil, fmt.Errorf("%w: unknown sign %q", ErrInvalidInput, in["sign2"])
	}
	score := Compatibility(s1, s2)

	prompt := fmt.Sprintf(`Você é uma astróloga do app Guia do Coração.
Analise a compatibilidade entre %s (%s, elemento %s) e %s (%s, elemento %s).
Pontuação de afinidade calculada: %d de 100.
Responda no formato:
{
	"summary": "visão geral do casal",
	"strengths": "pontos fortes",
	"challenges": "desafios",
	"advice": "conselho para o casal"
}`, in["name1"], s1.Name, s1.Element, in["name2"], s2.Name, s2.Element, score) + jsonInstructions

	return &prepared{
		prompt: prompt,
		computed: map[string]interface{}{
			"sign1": s1.Name,
			"sign2": s2.Name,
			"score": score,
		},
		fallback: map[string]interface{}{
			"summary":    fmt.Sprintf("%s e %s podem construir uma relação de aprendizado mútuo.", s1.Name, s2.Name),
			"strengths":  "Curiosidade e vontade de crescer juntos.",
			"challenges": "Respeitar os ritmos diferentes de cada um.",
			"advice":     "Conversem com sinceridade e carinho.",
		},
	}, nil
}
