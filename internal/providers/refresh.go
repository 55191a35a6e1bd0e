package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssooidc"

	"relaygate/internal/domain"
)

// basicAuthFamily refreshes with HTTP Basic auth instead of a JSON or
// form body.
var basicAuthFamily = map[string]bool{"iflow": true}

// formEncodedRefreshFamily posts refresh_token grants as
// application/x-www-form-urlencoded (OpenAI/Codex, Qwen, Google).
var formEncodedRefreshFamily = map[string]bool{"codex": true, "qwen": true, "google": true}

// refreshDefault dispatches to the provider's documented refresh encoding
// and normalizes the response. A provider with no OAuthTokenURL (API-key
// auth) has no refresh flow and returns (nil, nil).
func refreshDefault(ctx context.Context, client *http.Client, conn *domain.Connection, prov *domain.Provider) (*RefreshedCredentials, error) {
	if prov.OAuthTokenURL == "" || conn.Secrets.RefreshToken == "" {
		return nil, nil
	}

	var req *http.Request
	var err error

	switch {
	case basicAuthFamily[prov.ID]:
		form := url.Values{"grant_type": {"refresh_token"}, "refresh_token": {conn.Secrets.RefreshToken}}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, prov.OAuthTokenURL, bytes.NewBufferString(form.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			req.SetBasicAuth(prov.OAuthClientID, conn.Secrets.APIKey)
		}
	case formEncodedRefreshFamily[prov.ID]:
		form := url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {conn.Secrets.RefreshToken},
			"client_id":     {prov.OAuthClientID},
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, prov.OAuthTokenURL, bytes.NewBufferString(form.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	default:
		// JSON body: Anthropic and any other OAuth provider not named above.
		payload, _ := json.Marshal(map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": conn.Secrets.RefreshToken,
			"client_id":     prov.OAuthClientID,
		})
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, prov.OAuthTokenURL, bytes.NewReader(payload))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("providers: build refresh request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("providers: refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("providers: read refresh response: %w", err)
	}

	var parsed struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		IDToken      string `json:"id_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("providers: decode refresh response: %w", err)
	}

	rc := &RefreshedCredentials{
		AccessToken:  parsed.AccessToken,
		RefreshToken: parsed.RefreshToken,
		IDToken:      parsed.IDToken,
		ExpiresIn:    parsed.ExpiresIn,
	}
	if rc.RefreshToken == "" {
		rc.RefreshToken = conn.Secrets.RefreshToken // reused when the provider omits a rotated one
	}
	return rc, nil
}

// refreshKiro exchanges a Kiro refresh token for new credentials. Social-
// login connections refresh via Kiro's own JSON endpoint; connections
// authorized through AWS IAM Identity Center (SSOClientID/SSOClientSecret
// set at connection creation) refresh through AWS SSO-OIDC's CreateToken
// API instead, since that's the only party that will honor their refresh
// token.
func refreshKiro(ctx context.Context, client *http.Client, conn *domain.Connection, tokenURL string) (*RefreshedCredentials, error) {
	if conn.Secrets.SSOClientID != "" {
		return refreshKiroSSO(ctx, conn)
	}
	if conn.Secrets.RefreshToken == "" {
		return nil, nil
	}
	payload, _ := json.Marshal(map[string]string{"refreshToken": conn.Secrets.RefreshToken})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("providers: build kiro refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("providers: kiro refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("providers: read kiro refresh response: %w", err)
	}

	var parsed struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
		ExpiresIn    int    `json:"expiresIn"`
		ProfileARN   string `json:"profileArn"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("providers: decode kiro refresh response: %w", err)
	}

	rc := &RefreshedCredentials{
		AccessToken:  parsed.AccessToken,
		RefreshToken: parsed.RefreshToken,
		ExpiresIn:    parsed.ExpiresIn,
	}
	if rc.RefreshToken == "" {
		rc.RefreshToken = conn.Secrets.RefreshToken
	}
	if parsed.ProfileARN != "" {
		rc.Extra = map[string]any{"profileArn": parsed.ProfileARN}
	}
	return rc, nil
}

// refreshKiroSSO refreshes an IAM Identity Center connection's access
// token via AWS SSO-OIDC's CreateToken API, using the refresh_token grant.
// The region is taken from the connection's CodeWhisperer profile ARN
// (arn:aws:codewhisperer:<region>:...), since SSO-OIDC is a regional
// service and a connection has no separate region field of its own.
func refreshKiroSSO(ctx context.Context, conn *domain.Connection) (*RefreshedCredentials, error) {
	if conn.Secrets.RefreshToken == "" {
		return nil, nil
	}
	region := ssoRegionFromARN(conn.Secrets.ProfileARN)
	if region == "" {
		return nil, fmt.Errorf("providers: kiro sso connection has no region-bearing profile arn")
	}

	client := ssooidc.New(ssooidc.Options{Region: region})
	out, err := client.CreateToken(ctx, &ssooidc.CreateTokenInput{
		ClientId:     aws.String(conn.Secrets.SSOClientID),
		ClientSecret: aws.String(conn.Secrets.SSOClientSecret),
		GrantType:    aws.String("refresh_token"),
		RefreshToken: aws.String(conn.Secrets.RefreshToken),
	})
	if err != nil {
		return nil, fmt.Errorf("providers: sso-oidc refresh failed: %w", err)
	}

	rc := &RefreshedCredentials{
		AccessToken: aws.ToString(out.AccessToken),
		ExpiresIn:   int(out.ExpiresIn),
	}
	if out.RefreshToken != nil && *out.RefreshToken != "" {
		rc.RefreshToken = *out.RefreshToken
	} else {
		rc.RefreshToken = conn.Secrets.RefreshToken
	}
	return rc, nil
}

// ssoRegionFromARN extracts the region field from an
// "arn:partition:service:region:account:resource" ARN string.
func ssoRegionFromARN(arn string) string {
	parts := strings.SplitN(arn, ":", 5)
	if len(parts) < 4 {
		return ""
	}
	return parts[3]
}
