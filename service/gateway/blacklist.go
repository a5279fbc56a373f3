package gateway

import (
	"regexp"
	"strings"

	"PPSocket/tools/errs"
)

// Blacklist 客户端禁止直接调用的 action 名称
//
// 通配符：`*` 匹配一段（不跨 `.`），`**` 匹配任意字符，`?` 匹配单个字符；
// 以 `/` 开头结尾的条目按正则处理。大小写敏感。
type Blacklist struct {
	patterns []string
	exact    map[string]struct{}
	res      []*regexp.Regexp
}

func NewBlacklist(patterns []string) (*Blacklist, error) {
	b := &Blacklist{exact: make(map[string]struct{})}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		b.patterns = append(b.patterns, p)

		if len(p) > 1 && strings.HasPrefix(p, "/") && strings.HasSuffix(p, "/") {
			re, err := regexp.Compile(p[1 : len(p)-1])
			if err != nil {
				return nil, errs.ErrArgs.WrapMsg("bad blacklist regexp", "pattern", p, "err", err)
			}
			b.res = append(b.res, re)
			continue
		}
		if !strings.ContainsAny(p, "*?") {
			b.exact[p] = struct{}{}
			continue
		}
		b.res = append(b.res, regexp.MustCompile(wildcardToRegexp(p)))
	}
	return b, nil
}

func (b *Blacklist) Patterns() []string { return append([]string(nil), b.patterns...) }

func (b *Blacklist) Match(name string) bool {
	if _, ok := b.exact[name]; ok {
		return true
	}
	for _, re := range b.res {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

func wildcardToRegexp(p string) string {
	var sb strings.Builder
	sb.WriteString("^")
	for i := 0; i < len(p); i++ {
		switch c := p[i]; c {
		case '*':
			if i+1 < len(p) && p[i+1] == '*' {
				sb.WriteString(".*")
				i++
			} else {
				sb.WriteString("[^.]*")
			}
		case '?':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	sb.WriteString("$")
	return sb.String()
}
