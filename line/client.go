package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal LINE Messaging API / LINE Login client covering the
// calls this service makes: bot profile lookup, reply messages, rich menu
// management and the login token exchange.
type Client struct {
	httpClient         *http.Client
	baseURL            string
	channelAccessToken string
}

// Profile is a LINE user profile, from either the bot or the login API.
type Profile struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	PictureURL  string `json:"pictureUrl"`
}

// RichMenu is one entry of the rich menu list.
type RichMenu struct {
	RichMenuID string `json:"richMenuId"`
	Name       string `json:"name"`
}

func NewClient(baseURL, channelAccessToken string) *Client {
	return &Client{
		httpClient:         &http.Client{Timeout: 10 * time.Second},
		baseURL:            strings.TrimSuffix(baseURL, "/"),
		channelAccessToken: channelAccessToken,
	}
}

// GetProfile fetches a user's profile through the bot API.
func (c *Client) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var profile Profile
	if err := c.doJSON(ctx, http.MethodGet, "/v2/bot/profile/"+userID, nil, &profile); err != nil {
		return nil, fmt.Errorf("unable to get profile: %w", err)
	}
	return &profile, nil
}

// ReplyMessage sends a single text message back for a reply token.
func (c *Client) ReplyMessage(ctx context.Context, replyToken, text string) error {
	body := map[string]any{
		"replyToken": replyToken,
		"messages": []map[string]string{
			{"type": "text", "text": text},
		},
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v2/bot/message/reply", body, nil); err != nil {
		return fmt.Errorf("unable to reply: %w", err)
	}
	return nil
}

// GetRichMenuList lists every rich menu registered on the channel.
func (c *Client) GetRichMenuList(ctx context.Context) ([]RichMenu, error) {
	var result struct {
		RichMenus []RichMenu `json:"richmenus"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v2/bot/richmenu/list", nil, &result); err != nil {
		return nil, fmt.Errorf("unable to list rich menus: %w", err)
	}
	return result.RichMenus, nil
}

// LinkRichMenu attaches a rich menu to a user.
func (c *Client) LinkRichMenu(ctx context.Context, userID, richMenuID string) error {
	path := fmt.Sprintf("/v2/bot/user/%s/richmenu/%s", userID, richMenuID)
	if err := c.doJSON(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("unable to link rich menu: %w", err)
	}
	return nil
}

// UnlinkRichMenu detaches the user's rich menu.
func (c *Client) UnlinkRichMenu(ctx context.Context, userID string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/v2/bot/user/"+userID+"/richmenu", nil, nil); err != nil {
		return fmt.Errorf("unable to unlink rich menu: %w", err)
	}
	return nil
}

// ExchangeLoginCode swaps a LINE Login authorization code for an access token.
func (c *Client) ExchangeLoginCode(ctx context.Context, code, redirectURI, clientID, clientSecret string) (string, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth2/v2.1/token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("unable to exchange code for access token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unable to exchange code for access token: %s", readError(resp))
	}

	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("unable to exchange code for access token: %w", err)
	}
	return result.AccessToken, nil
}

// GetLoginProfile fetches the profile of the user behind a login access token.
func (c *Client) GetLoginProfile(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/profile", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to get profile: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unable to get profile: %s", readError(resp))
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("unable to get profile: %w", err)
	}
	return &profile, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.channelAccessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %s", method, path, readError(resp))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func readError(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
}
