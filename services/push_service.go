package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/jwt"
)

// PushService delivers admin push notifications through the FCM HTTP v1 API.
type PushService struct {
	projectID   string
	httpClient  *http.Client
	tokenSource oauth2.TokenSource
}

type serviceAccountCredentials struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	PrivateKey  string `json:"private_key"`
	ClientEmail string `json:"client_email"`
	TokenURI    string `json:"token_uri"`
}

// NewPushService initializes the push service from a Firebase service account
// JSON file. Returns nil (disabled) when FCM_CREDENTIALS_FILE is unset so push
// stays optional.
func NewPushService() (*PushService, error) {
	path := os.Getenv("FCM_CREDENTIALS_FILE")
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading credentials file: %w", err)
	}

	var creds serviceAccountCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("error parsing credentials: %w", err)
	}

	conf := &jwt.Config{
		Email:      creds.ClientEmail,
		PrivateKey: []byte(creds.PrivateKey),
		Scopes:     []string{"https://www.googleapis.com/auth/firebase.messaging"},
		TokenURL:   creds.TokenURI,
	}

	return &PushService{
		projectID:   creds.ProjectID,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		tokenSource: conf.TokenSource(oauth2.NoContext),
	}, nil
}

// SendToTopic publishes a notification to an FCM topic (e.g. "admins").
func (ps *PushService) SendToTopic(topic, title, body string, data map[string]string) error {
	if ps == nil {
		return nil
	}

	token, err := ps.tokenSource.Token()
	if err != nil {
		return fmt.Errorf("failed to obtain FCM access token: %w", err)
	}

	payload := map[string]interface{}{
		"message": map[string]interface{}{
			"topic": topic,
			"notification": map[string]string{
				"title": title,
				"body":  body,
			},
			"data": data,
		},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("https://fcm.googleapis.com/v1/projects/%s/messages:send", ps.projectID)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := ps.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("FCM request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("FCM returned status %d", resp.StatusCode)
	}
	return nil
}
