package matching

import (
	"strings"
	"unicode"

	"github.com/samber/lo"

	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/model"
	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/validation"
)

const (
	// ExactScore задаёт оценку совпадения нормализованных названий или номеров DIN.
	ExactScore = 1.0
	// MaxFuzzyScore ограничивает оценку нечёткого совпадения, чтобы она оставалась ниже точной.
	MaxFuzzyScore = 0.95

	fuzzyWeight = 0.9
	dosageBonus = 0.05
)

// NormalizeName приводит название препарата к нижнему регистру,
// заменяет знаки препинания пробелами и схлопывает пробелы.
func NormalizeName(name string) string {
	return strings.Join(nameTokens(name), " ")
}

func nameTokens(name string) []string {
	return strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalizeDosage(dosage string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, dosage)
}

// Similarity оценивает близость двух препаратов в диапазоне [0, 1].
// Совпадение названия или DIN даёт 1, иначе считается доля общих слов названия
// с надбавкой за одинаковую дозировку. Препараты без общих слов получают 0.
func Similarity(a, b model.Drug) float64 {
	na, nb := NormalizeName(a.Name), NormalizeName(b.Name)
	if na != "" && na == nb {
		return ExactScore
	}

	dinA, dinB := validation.NormalizeDIN(a.DIN), validation.NormalizeDIN(b.DIN)
	if dinA != "" && dinA == dinB {
		return ExactScore
	}

	ta, tb := lo.Uniq(nameTokens(a.Name)), lo.Uniq(nameTokens(b.Name))
	common := lo.Intersect(ta, tb)
	if len(common) == 0 {
		return 0
	}

	score := fuzzyWeight * float64(len(common)) / float64(len(lo.Union(ta, tb)))

	da, db := normalizeDosage(a.Dosage), normalizeDosage(b.Dosage)
	if da != "" && da == db {
		score += dosageBonus
	}

	return min(score, MaxFuzzyScore)
}

// bestPair выбирает наиболее похожую пару препаратов запроса и предложения.
// Возвращает название препарата из запроса и его оценку.
func bestPair(requested, offered []model.Drug) (string, float64) {
	var (
		name string
		best float64
	)
	for _, r := range requested {
		for _, o := range offered {
			if score := Similarity(r, o); score > best {
				name, best = r.Name, score
			}
		}
	}
	return name, best
}
