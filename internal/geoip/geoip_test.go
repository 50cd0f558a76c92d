package geoip

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// fakeTransport answers requests by host without touching the network.
// Hosts missing from the map fail at the transport level.
type fakeTransport map[string]http.HandlerFunc

func (f fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	h, ok := f[req.URL.Host]
	if !ok {
		return nil, errors.New("connection refused")
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec.Result(), nil
}

func jsonBody(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write([]byte(body)) //nolint:errcheck // Test
	}
}

func status(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	}
}

type attempt struct{ provider, result string }

func newTestClient(hosts fakeTransport, apiKey string) (*Client, *[]attempt) {
	var attempts []attempt
	c := NewClient(time.Second, apiKey)
	c.HTTP = &http.Client{Transport: hosts}
	c.Observe = func(provider, result string) {
		attempts = append(attempts, attempt{provider, result})
	}
	return c, &attempts
}

func TestLookup_FirstProviderWins(t *testing.T) {
	// "上海市" and "上海市 电信" in GBK.
	gbk := "{\"pro\":\"\xc9\xcf\xba\xa3\xca\xd0\",\"city\":\"\xc9\xcf\xba\xa3\xca\xd0\",\"addr\":\"\xc9\xcf\xba\xa3\xca\xd0 \xb5\xe7\xd0\xc5\"}"
	c, attempts := newTestClient(fakeTransport{
		"whois.pconline.com.cn": func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("ip") != "1.2.3.4" {
				t.Errorf("ip query = %q, want %q", r.URL.Query().Get("ip"), "1.2.3.4")
			}
			w.Header().Set("Content-Type", "text/javascript")
			w.Write([]byte(gbk)) //nolint:errcheck // Test
		},
	}, "")

	info, err := c.Lookup(context.Background(), "1.2.3.4")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}

	want := Info{IP: "1.2.3.4", Country: "中国", Region: "上海市", City: "上海市", ISP: "电信"}
	if info != want {
		t.Errorf("Lookup() = %+v, want %+v", info, want)
	}
	if len(*attempts) != 1 || (*attempts)[0] != (attempt{"pconline", ResultOK}) {
		t.Errorf("attempts = %v, want one ok pconline attempt", *attempts)
	}
}

func TestLookup_FallsThroughInOrder(t *testing.T) {
	c, attempts := newTestClient(fakeTransport{
		// pconline unreachable
		"api.vore.top":         status(http.StatusInternalServerError),
		"ip.useragentinfo.com": jsonBody(`not json`),
		"api.ipwhois.cn":       jsonBody(`{"ret":"invalid"}`),
		"ip-api.com": jsonBody(`{
			"status": "success",
			"country": "日本",
			"regionName": "东京都",
			"city": "东京",
			"lat": 35.6895,
			"lon": 139.6917,
			"timezone": "Asia/Tokyo",
			"isp": "NTT"
		}`),
	}, "")

	info, err := c.Lookup(context.Background(), "8.8.4.4")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if info.Country != "日本" || info.Loc != "35.6895,139.6917" || info.Timezone != "Asia/Tokyo" {
		t.Errorf("Lookup() = %+v", info)
	}

	want := []attempt{
		{"pconline", ResultTransport},
		{"vore", ResultBadStatus},
		{"useragentinfo", ResultBadBody},
		{"ipwhois.cn", ResultNoLocation},
		{"ip-api", ResultOK},
	}
	if len(*attempts) != len(want) {
		t.Fatalf("attempts = %v, want %v", *attempts, want)
	}
	for i := range want {
		if (*attempts)[i] != want[i] {
			t.Errorf("attempt[%d] = %v, want %v", i, (*attempts)[i], want[i])
		}
	}
}

func TestLookup_AllFail(t *testing.T) {
	c, attempts := newTestClient(fakeTransport{}, "")

	info, err := c.Lookup(context.Background(), "10.0.0.1")
	if !errors.Is(err, ErrNoProvider) {
		t.Fatalf("Lookup() error = %v, want ErrNoProvider", err)
	}
	if info != (Info{IP: "10.0.0.1"}) {
		t.Errorf("Lookup() = %+v, want only the IP", info)
	}
	if len(*attempts) != len(DefaultProviders("")) {
		t.Errorf("attempts = %d, want %d", len(*attempts), len(DefaultProviders("")))
	}
}

func TestLookup_EmptyAnswerIsNotSuccess(t *testing.T) {
	c, _ := newTestClient(fakeTransport{
		"whois.pconline.com.cn": jsonBody(`{"ip":"1.2.3.4","pro":"","city":""}`),
		"api.vore.top":          jsonBody(`{"result":200,"data":{"country":"中国","province":"广东","city":"深圳"}}`),
	}, "")

	info, err := c.Lookup(context.Background(), "1.2.3.4")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if info.City != "深圳" {
		t.Errorf("City = %q, want %q", info.City, "深圳")
	}
}

func TestLookup_Timeout(t *testing.T) {
	c, attempts := newTestClient(fakeTransport{
		"whois.pconline.com.cn": func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		},
		"api.vore.top": jsonBody(`{"result":200,"data":{"country":"中国"}}`),
	}, "")
	c.Timeout = 20 * time.Millisecond

	info, err := c.Lookup(context.Background(), "1.2.3.4")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if info.Country != "中国" {
		t.Errorf("Country = %q, want %q", info.Country, "中国")
	}
	if (*attempts)[0].provider != "pconline" || (*attempts)[0].result == ResultOK {
		t.Errorf("first attempt = %v, want a failed pconline attempt", (*attempts)[0])
	}
}

func TestLookup_CancelledContextStops(t *testing.T) {
	c, attempts := newTestClient(fakeTransport{}, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Lookup(ctx, "1.2.3.4")
	if !errors.Is(err, ErrNoProvider) {
		t.Fatalf("Lookup() error = %v, want ErrNoProvider", err)
	}
	if len(*attempts) != 1 {
		t.Errorf("attempts = %d, want 1", len(*attempts))
	}
}

func TestDefaultProviders_IPGeolocationNeedsKey(t *testing.T) {
	names := func(ps []Provider) map[string]bool {
		m := make(map[string]bool)
		for _, p := range ps {
			m[p.Name] = true
		}
		return m
	}

	if names(DefaultProviders(""))["ipgeolocation"] {
		t.Error("ipgeolocation included without an API key")
	}
	with := DefaultProviders("k")
	if !names(with)["ipgeolocation"] {
		t.Fatal("ipgeolocation missing with an API key")
	}
	for _, p := range with {
		if p.Name == "ipgeolocation" {
			if got := p.URL("1.2.3.4"); got != "https://api.ipgeolocation.io/ipgeo?apiKey=k&ip=1.2.3.4" {
				t.Errorf("URL = %q", got)
			}
		}
	}
}

func TestDecoders(t *testing.T) {
	tests := []struct {
		name   string
		decode func(map[string]any) (Info, bool)
		body   map[string]any
		want   Info
		wantOK bool
	}{
		{
			name:   "ipinfo prefers org",
			decode: decodeIPInfo,
			body:   map[string]any{"country": "CN", "city": "Beijing", "loc": "39.9,116.4", "org": "AS4134 Chinanet", "isp": "x"},
			want:   Info{Country: "CN", City: "Beijing", Loc: "39.9,116.4", ISP: "AS4134 Chinanet"},
			wantOK: true,
		},
		{
			name:   "ipinfo error",
			decode: decodeIPInfo,
			body:   map[string]any{"error": map[string]any{"title": "rate limited"}},
			wantOK: false,
		},
		{
			name:   "ipgeolocation nested timezone",
			decode: decodeIPGeolocation,
			body:   map[string]any{"country_name": "China", "state_prov": "Zhejiang", "time_zone": map[string]any{"name": "Asia/Shanghai"}},
			want:   Info{Country: "China", Region: "Zhejiang", Timezone: "Asia/Shanghai"},
			wantOK: true,
		},
		{
			name:   "freeipapi",
			decode: decodeFreeIPAPI,
			body:   map[string]any{"countryName": "China", "cityName": "Chengdu", "latitude": 30.66, "longitude": 104.07},
			want:   Info{Country: "China", City: "Chengdu", Loc: "30.66,104.07"},
			wantOK: true,
		},
		{
			name:   "vore failure code",
			decode: decodeVore,
			body:   map[string]any{"result": 500},
			wantOK: false,
		},
		{
			name:   "ip-api failure",
			decode: decodeIPAPI,
			body:   map[string]any{"status": "fail", "message": "private range"},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.decode(tt.body)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
