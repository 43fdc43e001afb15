package root

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"fireq/internal/config"
	"fireq/internal/security"
)

// skipHeaders are not replayed; the client sets them itself
var skipHeaders = map[string]bool{
	"Content-Length":  true,
	"Accept-Encoding": true,
	"Connection":      true,
	"Host":            true,
	"User-Agent":      true,
}

func newReplayCmd(flags *configFlags) *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "replay <request.json>",
		Short: "Re-send a saved webhook request, signed, to a running server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			req, err := loadRequest(args[0], url, cfg.Secret)
			if err != nil {
				return err
			}

			resp, err := (&http.Client{Timeout: time.Minute}).Do(req)
			if err != nil {
				return fmt.Errorf("replay: %w", err)
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("replay: server answered %s: %s", resp.Status, bytes.TrimSpace(body))
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", resp.Status, bytes.TrimSpace(body))
			return err
		},
	}
	cmd.Flags().StringVar(&url, "url", "http://localhost:"+config.Port()+"/", "webhook URL")
	return cmd
}

// loadRequest rebuilds the webhook request persisted at path. The body is
// compacted and signed again with secret
func loadRequest(path, url, secret string) (*http.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	var saved []json.RawMessage
	if err := json.Unmarshal(data, &saved); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(saved) != 2 {
		return nil, fmt.Errorf("decode %s: want [headers, body], got %d items", path, len(saved))
	}
	var headers map[string]string
	if err := json.Unmarshal(saved[0], &headers); err != nil {
		return nil, fmt.Errorf("decode headers: %w", err)
	}
	var body bytes.Buffer
	if err := json.Compact(&body, saved[1]); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body.Bytes()))
	if err != nil {
		return nil, err
	}
	for key, value := range headers {
		if skipHeaders[http.CanonicalHeaderKey(key)] {
			continue
		}
		req.Header.Set(key, value)
	}
	req.Header.Set(security.SignatureHeader, security.Sign(body.Bytes(), []byte(secret)))
	return req, nil
}
