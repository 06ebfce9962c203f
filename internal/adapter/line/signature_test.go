package line

import "testing"

func TestVerifySignature(t *testing.T) {
	secret := "test-channel-secret"
	body := []byte(`{"events":[{"type":"message"}]}`)

	tests := []struct {
		name      string
		body      []byte
		signature string
		secret    string
		want      bool
	}{
		{
			name:      "valid signature",
			body:      body,
			signature: signBody(body, secret),
			secret:    secret,
			want:      true,
		},
		{
			name:      "empty body with valid signature",
			body:      []byte{},
			signature: signBody([]byte{}, secret),
			secret:    secret,
			want:      true,
		},
		{
			name:      "tampered body",
			body:      []byte(`{"events":[{"type":"tampered"}]}`),
			signature: signBody(body, secret),
			secret:    secret,
			want:      false,
		},
		{
			name:      "different channel secret",
			body:      body,
			signature: signBody(body, secret),
			secret:    "different-secret",
			want:      false,
		},
		{
			name:      "empty signature",
			body:      body,
			signature: "",
			secret:    secret,
			want:      false,
		},
		{
			name:      "signature is not base64",
			body:      body,
			signature: "not-valid-base64!",
			secret:    secret,
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := verifySignature(tt.body, tt.signature, tt.secret); got != tt.want {
				t.Errorf("verifySignature() = %v, want %v", got, tt.want)
			}
		})
	}
}
