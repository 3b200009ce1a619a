package line

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrNoInsideRichMenu means no "inside-" rich menu is provisioned on the channel.
var ErrNoInsideRichMenu = errors.New("no inside rich menu found")

const richMenuCacheTTL = time.Minute

// RichMenuCache resolves the rich menu shown to users while they are inside a
// room. The list query is cached for a minute per process; staleness only
// delays which menu image new joiners get, it never affects the conversation
// logic.
type RichMenuCache struct {
	client *Client

	mu        sync.Mutex
	id        string
	expiresAt time.Time
}

func NewRichMenuCache(client *Client) *RichMenuCache {
	return &RichMenuCache{client: client}
}

// InsideRichMenuID returns the id of the newest rich menu whose name starts
// with "inside-". Menus are versioned by name, so the lexicographically
// largest one wins.
func (c *RichMenuCache) InsideRichMenuID(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.id != "" && time.Now().Before(c.expiresAt) {
		return c.id, nil
	}

	menus, err := c.client.GetRichMenuList(ctx)
	if err != nil {
		return "", err
	}

	var inside []RichMenu
	for _, menu := range menus {
		if strings.HasPrefix(menu.Name, "inside-") {
			inside = append(inside, menu)
		}
	}
	if len(inside) == 0 {
		return "", ErrNoInsideRichMenu
	}
	sort.Slice(inside, func(i, j int) bool { return inside[i].Name > inside[j].Name })

	c.id = inside[0].RichMenuID
	c.expiresAt = time.Now().Add(richMenuCacheTTL)
	return c.id, nil
}
