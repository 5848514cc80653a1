package shared

import (
	"net/mail"
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// LANGUAGE
// ═══════════════════════════════════════════════════════════════════════════

// Language is an ISO 639-1 code of a language offered on the platform.
type Language string

const (
	LanguageEnglish    Language = "en"
	LanguageSpanish    Language = "es"
	LanguageFrench     Language = "fr"
	LanguageGerman     Language = "de"
	LanguageItalian    Language = "it"
	LanguagePortuguese Language = "pt"
	LanguageRussian    Language = "ru"
	LanguageChinese    Language = "zh"
	LanguageJapanese   Language = "ja"
	LanguageKorean     Language = "ko"
)

// Languages lists every supported language in display order.
var Languages = []Language{
	LanguageEnglish, LanguageSpanish, LanguageFrench, LanguageGerman, LanguageItalian,
	LanguagePortuguese, LanguageRussian, LanguageChinese, LanguageJapanese, LanguageKorean,
}

var languageNames = map[Language]string{
	LanguageEnglish:    "English",
	LanguageSpanish:    "Español",
	LanguageFrench:     "Français",
	LanguageGerman:     "Deutsch",
	LanguageItalian:    "Italiano",
	LanguagePortuguese: "Português",
	LanguageRussian:    "Русский",
	LanguageChinese:    "中文",
	LanguageJapanese:   "日本語",
	LanguageKorean:     "한국어",
}

func (l Language) IsValid() bool {
	_, ok := languageNames[l]
	return ok
}

// DisplayName returns the language name written in that language.
func (l Language) DisplayName() string {
	if name, ok := languageNames[l]; ok {
		return name
	}
	return string(l)
}

func (l Language) String() string { return string(l) }

// ═══════════════════════════════════════════════════════════════════════════
// FINANCIAL SKILL
// ═══════════════════════════════════════════════════════════════════════════

// FinancialSkill is the finance topic a course or challenge trains.
type FinancialSkill string

const (
	SkillBudgeting       FinancialSkill = "budgeting"
	SkillInvesting       FinancialSkill = "investing"
	SkillBanking         FinancialSkill = "banking"
	SkillInsurance       FinancialSkill = "insurance"
	SkillTaxes           FinancialSkill = "taxes"
	SkillRetirement      FinancialSkill = "retirement"
	SkillRealEstate      FinancialSkill = "real_estate"
	SkillCryptocurrency  FinancialSkill = "cryptocurrency"
	SkillBusinessFinance FinancialSkill = "business_finance"
	SkillPersonalFinance FinancialSkill = "personal_finance"
)

var skillNames = map[FinancialSkill]string{
	SkillBudgeting:       "Budgeting",
	SkillInvesting:       "Investing",
	SkillBanking:         "Banking",
	SkillInsurance:       "Insurance",
	SkillTaxes:           "Taxes",
	SkillRetirement:      "Retirement Planning",
	SkillRealEstate:      "Real Estate",
	SkillCryptocurrency:  "Cryptocurrency",
	SkillBusinessFinance: "Business Finance",
	SkillPersonalFinance: "Personal Finance",
}

func (s FinancialSkill) IsValid() bool {
	_, ok := skillNames[s]
	return ok
}

func (s FinancialSkill) DisplayName() string {
	if name, ok := skillNames[s]; ok {
		return name
	}
	return string(s)
}

func (s FinancialSkill) String() string { return string(s) }

// ═══════════════════════════════════════════════════════════════════════════
// DIFFICULTY
// ═══════════════════════════════════════════════════════════════════════════

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
	DifficultyExpert       Difficulty = "expert"
)

func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced, DifficultyExpert:
		return true
	}
	return false
}

func (d Difficulty) String() string { return string(d) }

// ═══════════════════════════════════════════════════════════════════════════
// EMAIL
// ═══════════════════════════════════════════════════════════════════════════

// Email is a normalized (trimmed, lowercased) address.
type Email string

// NewEmail validates and normalizes an address. Display-name forms such as
// "Bob <bob@x.io>" are rejected.
func NewEmail(value string) (Email, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	addr, err := mail.ParseAddress(v)
	if err != nil || addr.Address != v || !strings.Contains(v[strings.LastIndex(v, "@")+1:], ".") {
		return "", InvalidArgument("shared", "NewEmail", "malformed email %q", value)
	}
	return Email(v), nil
}

func (e Email) String() string { return string(e) }

// ═══════════════════════════════════════════════════════════════════════════
// TIME RANGE
// ═══════════════════════════════════════════════════════════════════════════

// TimeRange is a closed interval [From, To].
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (t TimeRange) IsValid() bool {
	return !t.From.IsZero() && !t.To.IsZero() && !t.To.Before(t.From)
}

func (t TimeRange) Contains(tm time.Time) bool {
	return !tm.Before(t.From) && !tm.After(t.To)
}

func (t TimeRange) Duration() time.Duration {
	return t.To.Sub(t.From)
}

func NewTimeRange(from, to time.Time) (TimeRange, error) {
	r := TimeRange{From: from, To: to}
	if !r.IsValid() {
		return TimeRange{}, InvalidArgument("shared", "NewTimeRange", "end %s precedes start %s", to.Format(time.RFC3339), from.Format(time.RFC3339))
	}
	return r, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// PAGINATION
// ═══════════════════════════════════════════════════════════════════════════

type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

func NewPagination(page, pageSize int) Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}

func (p Pagination) Offset() int { return (p.Page - 1) * p.PageSize }
func (p Pagination) Limit() int  { return p.PageSize }

// Window clips [Offset, Offset+Limit) to n items.
func (p Pagination) Window(n int) (start, end int) {
	start = p.Offset()
	if start > n {
		start = n
	}
	end = start + p.Limit()
	if end > n {
		end = n
	}
	return start, end
}
