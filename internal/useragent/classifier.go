// Package useragent 从 User-Agent 字符串中提取设备类型、浏览器和操作系统。
//
// 所有规则都是大小写不敏感的子串匹配，按列表顺序检查，首个命中即返回。
// 顺序决定结果，例如 iPad 同时出现在移动和平板关键字中，因为移动列表先检查，
// iPad 被归为 mobile。
package useragent

import "strings"

// 设备类型
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
)

// Unknown 浏览器和操作系统的默认值
const Unknown = "Unknown"

// Result 分类结果
type Result struct {
	DeviceType  string `json:"device_type"`
	BrowserName string `json:"browser_name"`
	OS          string `json:"os"`
}

type rule struct {
	name     string
	keywords []string
}

var (
	mobileKeywords = []string{"mobile", "android", "iphone", "ipad", "ipod", "blackberry", "iemobile", "opera mini"}
	tabletKeywords = []string{"tablet", "ipad", "kindle", "silk", "playbook"}

	browserRules = []rule{
		{name: "Edge", keywords: []string{"edge"}},
		{name: "Chrome", keywords: []string{"chrome"}},
		{name: "Firefox", keywords: []string{"firefox"}},
		{name: "Safari", keywords: []string{"safari"}},
		{name: "Opera", keywords: []string{"opera", "opr"}},
	}

	// iOS 的 UA 含有 "like Mac OS X"，Android 的 UA 含有 "Linux"，
	// 所以移动平台必须排在对应的桌面平台之前
	osRules = []rule{
		{name: "Windows", keywords: []string{"windows"}},
		{name: "iOS", keywords: []string{"iphone", "ipad", "ios"}},
		{name: "Android", keywords: []string{"android"}},
		{name: "macOS", keywords: []string{"macintosh", "mac os x"}},
		{name: "Linux", keywords: []string{"linux"}},
	}
)

// Classify 对 User-Agent 进行分类。空字符串返回全部默认值。
func Classify(userAgent string) Result {
	ua := strings.ToLower(userAgent)
	return Result{
		DeviceType:  detectDevice(ua),
		BrowserName: firstMatch(ua, browserRules),
		OS:          firstMatch(ua, osRules),
	}
}

func detectDevice(ua string) string {
	if containsAny(ua, mobileKeywords) {
		return DeviceMobile
	}
	if containsAny(ua, tabletKeywords) {
		return DeviceTablet
	}
	return DeviceDesktop
}

func firstMatch(ua string, rules []rule) string {
	for _, r := range rules {
		if containsAny(ua, r.keywords) {
			return r.name
		}
	}
	return Unknown
}

func containsAny(s string, keywords []string) bool {
	if s == "" {
		return false
	}
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
