package llm

import (
	"context"
	"testing"
)

func TestNewClientModes(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
		mock    bool
	}{
		{"auto without key falls back to mock", Config{Mode: "auto"}, false, true},
		{"auto with key uses anthropic", Config{Mode: "auto", APIKey: "sk-test"}, false, false},
		{"empty mode behaves like auto", Config{}, false, true},
		{"anthropic requires key", Config{Mode: "anthropic"}, true, false},
		{"explicit mock", Config{Mode: "mock", APIKey: "sk-test"}, false, true},
		{"unknown mode rejected", Config{Mode: "oracle"}, true, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, err := NewClient(tc.cfg)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("NewClient(%+v) succeeded, want error", tc.cfg)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewClient(%+v) error = %v", tc.cfg, err)
			}
			_, isMock := client.(*MockClient)
			if isMock != tc.mock {
				t.Fatalf("client mock = %v, want %v", isMock, tc.mock)
			}
		})
	}
}

func TestMockClientScript(t *testing.T) {
	client := NewMockClient(func(req Request) (string, error) {
		return "scripted: " + req.Messages[0].Content, nil
	})
	got, err := client.Complete(context.Background(), Request{
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "scripted: hello" {
		t.Fatalf("Complete() = %q", got)
	}
}

func TestMockClientCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMockClient(nil).Complete(ctx, Request{}); err == nil {
		t.Fatalf("Complete() with canceled context succeeded, want error")
	}
}
