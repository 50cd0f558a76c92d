package geoip

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
)

// DefaultProviders returns the lookup services in the order they are tried.
// Domestic services come first since most visitors are in mainland China.
func DefaultProviders(ipgeolocationKey string) []Provider {
	providers := []Provider{
		{
			Name:    "pconline",
			URL:     func(ip string) string { return "https://whois.pconline.com.cn/ipJson.jsp?json=true&ip=" + url.QueryEscape(ip) },
			Charset: "gbk",
			Decode:  decodePconline,
		},
		{
			Name:   "vore",
			URL:    func(ip string) string { return "https://api.vore.top/api/IPdata?ip=" + url.QueryEscape(ip) },
			Decode: decodeVore,
		},
		{
			Name:   "useragentinfo",
			URL:    func(ip string) string { return "https://ip.useragentinfo.com/json?ip=" + url.QueryEscape(ip) },
			Decode: decodeUserAgentInfo,
		},
		{
			Name:   "ipwhois.cn",
			URL:    func(ip string) string { return "https://api.ipwhois.cn/?json=true&ip=" + url.QueryEscape(ip) },
			Decode: decodeIPWhoisCN,
		},
		{
			Name:   "ip-api",
			URL:    func(ip string) string { return "https://ip-api.com/json/" + url.PathEscape(ip) + "?lang=zh-CN" },
			Decode: decodeIPAPI,
		},
		{
			Name:   "ipinfo",
			URL:    func(ip string) string { return "https://ipinfo.io/" + url.PathEscape(ip) + "/json" },
			Decode: decodeIPInfo,
		},
		{
			Name:   "ipapi.co",
			URL:    func(ip string) string { return "https://ipapi.co/" + url.PathEscape(ip) + "/json/" },
			Decode: decodeIPAPICo,
		},
	}

	if ipgeolocationKey != "" {
		providers = append(providers, Provider{
			Name: "ipgeolocation",
			URL: func(ip string) string {
				q := url.Values{"apiKey": {ipgeolocationKey}, "ip": {ip}}
				return "https://api.ipgeolocation.io/ipgeo?" + q.Encode()
			},
			Decode: decodeIPGeolocation,
		})
	}

	return append(providers,
		Provider{
			Name:   "freeipapi",
			URL:    func(ip string) string { return "https://freeipapi.com/api/json/" + url.PathEscape(ip) },
			Decode: decodeFreeIPAPI,
		},
		Provider{
			Name:   "db-ip",
			URL:    func(ip string) string { return "https://api.db-ip.com/v2/free/" + url.PathEscape(ip) },
			Decode: decodeDBIP,
		},
	)
}

func decodePconline(m map[string]any) (Info, bool) {
	info := Info{
		Region:   str(m, "pro"),
		City:     str(m, "city"),
		Loc:      loc(m, "lat", "lng"),
		Timezone: str(m, "timezone"),
		ISP:      str(m, "isp"),
	}
	if info.Region != "" {
		info.Country = "中国"
	}
	if info.ISP == "" {
		// "addr" reads like "上海市 电信"; the carrier is the last word.
		if fields := strings.Fields(str(m, "addr")); len(fields) > 1 {
			info.ISP = fields[len(fields)-1]
		}
	}
	return info, true
}

func decodeVore(m map[string]any) (Info, bool) {
	if str(m, "result") != "200" {
		return Info{}, false
	}
	d, ok := m["data"].(map[string]any)
	if !ok {
		return Info{}, false
	}
	return Info{
		Country:  str(d, "country"),
		Region:   str(d, "province"),
		City:     str(d, "city"),
		Loc:      loc(d, "lat", "lng"),
		Timezone: str(d, "timezone"),
		ISP:      str(d, "isp"),
	}, true
}

func decodeUserAgentInfo(m map[string]any) (Info, bool) {
	if str(m, "code") != "200" {
		return Info{}, false
	}
	d, ok := m["data"].(map[string]any)
	if !ok {
		return Info{}, false
	}
	return Info{
		Country:  str(d, "country"),
		Region:   str(d, "region"),
		City:     str(d, "city"),
		Loc:      loc(d, "lat", "lng"),
		Timezone: str(d, "timezone"),
		ISP:      str(d, "isp"),
	}, true
}

func decodeIPWhoisCN(m map[string]any) (Info, bool) {
	if str(m, "ret") != "ok" {
		return Info{}, false
	}
	return Info{
		Country:  str(m, "country"),
		Region:   str(m, "province"),
		City:     str(m, "city"),
		Loc:      loc(m, "lat", "lng"),
		Timezone: str(m, "timezone"),
		ISP:      str(m, "isp"),
	}, true
}

func decodeIPAPI(m map[string]any) (Info, bool) {
	if str(m, "status") != "success" {
		return Info{}, false
	}
	return Info{
		Country:  str(m, "country"),
		Region:   str(m, "regionName"),
		City:     str(m, "city"),
		Loc:      loc(m, "lat", "lon"),
		Timezone: str(m, "timezone"),
		ISP:      str(m, "isp"),
	}, true
}

func decodeIPInfo(m map[string]any) (Info, bool) {
	if _, failed := m["error"]; failed {
		return Info{}, false
	}
	return Info{
		Country:  str(m, "country"),
		Region:   str(m, "region"),
		City:     str(m, "city"),
		Loc:      str(m, "loc"),
		Timezone: str(m, "timezone"),
		ISP:      firstOf(str(m, "org"), str(m, "isp")),
	}, true
}

func decodeIPAPICo(m map[string]any) (Info, bool) {
	if str(m, "error") == "true" {
		return Info{}, false
	}
	return Info{
		Country:  firstOf(str(m, "country_name"), str(m, "country")),
		Region:   str(m, "region"),
		City:     str(m, "city"),
		Loc:      loc(m, "latitude", "longitude"),
		Timezone: str(m, "timezone"),
		ISP:      firstOf(str(m, "org"), str(m, "isp")),
	}, true
}

func decodeIPGeolocation(m map[string]any) (Info, bool) {
	info := Info{
		Country: str(m, "country_name"),
		Region:  str(m, "state_prov"),
		City:    str(m, "city"),
		Loc:     loc(m, "latitude", "longitude"),
		ISP:     str(m, "isp"),
	}
	if tz, ok := m["time_zone"].(map[string]any); ok {
		info.Timezone = str(tz, "name")
	}
	return info, true
}

func decodeFreeIPAPI(m map[string]any) (Info, bool) {
	return Info{
		Country:  str(m, "countryName"),
		Region:   str(m, "regionName"),
		City:     str(m, "cityName"),
		Loc:      loc(m, "latitude", "longitude"),
		Timezone: str(m, "timeZone"),
		ISP:      str(m, "isp"),
	}, true
}

func decodeDBIP(m map[string]any) (Info, bool) {
	if _, failed := m["error"]; failed {
		return Info{}, false
	}
	return Info{
		Country:  str(m, "countryName"),
		Region:   str(m, "stateProv"),
		City:     str(m, "city"),
		Loc:      loc(m, "latitude", "longitude"),
		Timezone: str(m, "timeZone"),
		ISP:      str(m, "isp"),
	}, true
}

// str renders m[key] as text. Missing, null and empty values give "".
func str(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// loc joins two coordinate members as "lat,lng" when both are present.
func loc(m map[string]any, latKey, lngKey string) string {
	lat, lng := str(m, latKey), str(m, lngKey)
	if lat == "" || lng == "" {
		return ""
	}
	return lat + "," + lng
}

func firstOf(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
