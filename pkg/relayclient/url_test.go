package relayclient

import "testing"

func TestResolveURL(t *testing.T) {
	tests := []struct {
		name     string
		override string
		page     string
		want     string
		wantErr  bool
	}{
		{name: "overrideWins", override: "ws://relay.internal:9000/ws", page: "https://pos.local", want: "ws://relay.internal:9000/ws"},
		{name: "httpPage", page: "http://pos.local/orders", want: "ws://pos.local:8080"},
		{name: "httpsPage", page: "https://pos.local/kitchen", want: "wss://pos.local:8080"},
		{name: "pagePortIgnored", page: "http://192.168.1.20:3000/", want: "ws://192.168.1.20:8080"},
		{name: "ipv6Host", page: "http://[::1]:3000/", want: "ws://[::1]:8080"},
		{name: "upperCaseScheme", page: "HTTPS://pos.local", want: "wss://pos.local:8080"},
		{name: "blankOverrideIgnored", override: "  ", page: "http://pos.local", want: "ws://pos.local:8080"},
		{name: "noHost", page: "/orders", wantErr: true},
		{name: "invalidPage", page: "http://[::1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveURL(tt.override, tt.page)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ResolveURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ResolveURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
