package i18n

import (
	"golang.org/x/text/language"
)

const DefaultLanguage = "en-US"

// 目前只支持两种
var supported = []language.Tag{
	language.AmericanEnglish,
	language.SimplifiedChinese,
}

var matcher = language.NewMatcher(supported)

var names = map[language.Tag]string{
	language.AmericanEnglish:   "en-US",
	language.SimplifiedChinese: "zh-CN",
}

// FromAcceptLanguage 解析 Accept-Language 头，返回最匹配的语言标识
func FromAcceptLanguage(header string) string {
	if header == "" {
		return DefaultLanguage
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return DefaultLanguage
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return DefaultLanguage
	}
	return names[supported[idx]]
}
