// Package invalidation реализует правила и стратегии инвалидации кеша.
// Сервис отделяет события "данные изменились" от действий "очистить записи кеша":
// для каждого класса данных правило задаёт свой компромисс между
// консистентностью и нагрузкой на кеш.
package invalidation

import (
	"errors"
	"strings"
)

// KeyMatcher определяет способ сопоставления ключа кеша с шаблоном правила.
// Поддерживаются ровно три варианта: точное совпадение, совпадение по префиксу
// ("user_data:*") и совпадение по суффиксу ("*:summary"). Многосегментные
// шаблоны и экранирование не поддерживаются.
type KeyMatcher interface {
	Match(key string) bool
	Pattern() string
}

// ErrEmptyPattern возвращается при попытке создать matcher из пустого шаблона.
var ErrEmptyPattern = errors.New("pattern must not be empty")

// ExactKey сопоставляет ключ с шаблоном посимвольно.
type ExactKey struct {
	key string
}

func (m ExactKey) Match(key string) bool { return key == m.key }
func (m ExactKey) Pattern() string       { return m.key }

// PrefixKey сопоставляет ключ по литеральному префиксу шаблона вида "prefix*".
type PrefixKey struct {
	prefix string
}

func (m PrefixKey) Match(key string) bool { return strings.HasPrefix(key, m.prefix) }
func (m PrefixKey) Pattern() string       { return m.prefix + "*" }

// SuffixKey сопоставляет ключ по литеральному суффиксу шаблона вида "*suffix".
type SuffixKey struct {
	suffix string
}

func (m SuffixKey) Match(key string) bool { return strings.HasSuffix(key, m.suffix) }
func (m SuffixKey) Pattern() string       { return "*" + m.suffix }

// NewKeyMatcher строит matcher по шаблону правила.
// Шаблон, оканчивающийся на "*", сопоставляется по префиксу; начинающийся
// с "*" — по суффиксу; остальные — точно. Пустой шаблон недопустим.
func NewKeyMatcher(pattern string) (KeyMatcher, error) {
	if pattern == "" {
		return nil, ErrEmptyPattern
	}

	switch {
	case strings.HasSuffix(pattern, "*"):
		return PrefixKey{prefix: strings.TrimSuffix(pattern, "*")}, nil
	case strings.HasPrefix(pattern, "*"):
		return SuffixKey{suffix: strings.TrimPrefix(pattern, "*")}, nil
	default:
		return ExactKey{key: pattern}, nil
	}
}

// DerivePrefix возвращает префикс ключей кеша, подлежащий очистке для шаблона:
// часть до первого ":" без завершающей "*".
func DerivePrefix(pattern string) string {
	p := strings.TrimSuffix(pattern, "*")
	p = strings.TrimPrefix(p, "*")
	if i := strings.Index(p, ":"); i >= 0 {
		return p[:i]
	}
	return p
}
