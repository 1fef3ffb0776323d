package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Makepad-fr/basket/internal/auth"
	"github.com/Makepad-fr/basket/internal/config"
	"github.com/Makepad-fr/basket/internal/errs"
	"github.com/Makepad-fr/basket/internal/feed"
	"github.com/Makepad-fr/basket/internal/model"
	"github.com/Makepad-fr/basket/internal/policy"
)

const logFileName = "basket.log"

func logFile(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, logFileName)
}

func (o *RootOptions) credentials() auth.Store {
	return auth.Store{Dir: o.cfg.DataDir}
}

// apiKey prefers the configured key over the saved credentials.
func (o *RootOptions) apiKey() (string, error) {
	if o.cfg.APIKey != "" {
		return o.cfg.APIKey, nil
	}
	c, err := o.credentials().Get()
	if err != nil {
		return "", err
	}
	if c == nil {
		return "", nil
	}
	return c.APIKey, nil
}

func notConfigured(missing []string) error {
	return fmt.Errorf("not configured: set %s (config file, BASKET_SERVER_URL or --server)", strings.Join(missing, ", "))
}

// remote connects client commands to the feed server.
func (o *RootOptions) remote(opts ...feed.RemoteOption) (*feed.Remote, error) {
	if missing := o.cfg.MissingClientParams(); len(missing) > 0 {
		return nil, notConfigured(missing)
	}
	key, err := o.apiKey()
	if err != nil {
		return nil, err
	}
	opts = append([]feed.RemoteOption{feed.WithLogger(o.logger())}, opts...)
	return feed.NewRemote(o.cfg.ServerURL, key, opts...)
}

func (o *RootOptions) newPolicy(f feed.Feed, onChange func()) *policy.Policy {
	return policy.New(f, policy.Options{
		Room:        o.cfg.Room,
		DeleteDelay: o.cfg.DeleteDelay,
		Logger:      o.logger(),
		OnChange:    onChange,
	})
}

// openList connects and reads the room once.
func (o *RootOptions) openList(ctx context.Context) (*policy.Policy, error) {
	f, err := o.remote()
	if err != nil {
		return nil, err
	}
	pol := o.newPolicy(f, nil)
	if err := pol.Refresh(ctx); err != nil {
		return nil, err
	}
	return pol, nil
}

// resolveItem finds an item by 1-based index or by its text.
func resolveItem(items []model.ListItem, arg string) (model.ListItem, error) {
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(items) {
			return model.ListItem{}, errs.Validation(fmt.Sprintf("index out of range: have %d, got %d", len(items), n))
		}
		return items[n-1], nil
	}
	key := model.MatchKey(arg)
	for _, it := range items {
		if model.MatchKey(it.Text) == key {
			return it, nil
		}
	}
	return model.ListItem{}, errs.NotFound(fmt.Sprintf("no item named %q", arg))
}

// confirm asks prompt on out and reads a yes/no answer from in.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N] ", prompt)
	line, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
