// Command decode-cli is the admin/debug client for a running decode
// server, grounded on cmd/qubicdb-cli/main.go's cobra root command +
// cli{conn, client} + PersistentPreRunE connect shape, adapted from a
// plain REST client to an MCP tool-calling client since the decoder
// only exposes decoder_recognize / decoder_get_lattice /
// decoder_get_timed_best_result over MCP (no REST surface of its own).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcpproto "github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"

	"github.com/denizumutdereli/lvcsr-decoder/internal/connstring"
)

// cli holds the shared state for all subcommands: the parsed connection
// string and a lazily-initialized MCP client bound to it.
type cli struct {
	conn   *connstring.ConnInfo
	client *mcpclient.Client
}

func main() {
	var connectStr string
	var interactive bool

	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "decode-cli",
		Short: "decode-cli — admin/debug client for a decode server",
		Long:  "A command-line MCP client for exercising a running decode server's recognize/lattice/N-best tools, similar to redis-cli or psql.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if connectStr == "" {
				connectStr = os.Getenv("DECODER_URL")
			}
			if connectStr == "" {
				connectStr = "decode://localhost:7070"
			}
			info, err := connstring.Parse(connectStr)
			if err != nil {
				return fmt.Errorf("invalid connection string: %w", err)
			}
			c.conn = info
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			runREPL(c)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&connectStr, "connect", "", "Connection string (decode://[user:apikey@]host[:port][/sessionID])")
	rootCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Start interactive shell (default when no subcommand given)")

	rootCmd.AddCommand(newRecognizeCmd(c))
	rootCmd.AddCommand(newGetLatticeCmd(c))
	rootCmd.AddCommand(newGetTimedBestCmd(c))

	rootCmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if interactive {
			runREPL(c)
			os.Exit(0)
		}
		return nil
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRecognizeCmd(c *cli) *cobra.Command {
	var sessionID, featuresJSON string
	var blockSize int

	cmd := &cobra.Command{
		Use:   "recognize",
		Short: "Push a block of feature frames into a session and run recognize()",
		RunE: func(cmd *cobra.Command, args []string) error {
			sid := resolveSession(c, sessionID)
			out, err := c.callTool(cmd.Context(), "decoder_recognize", map[string]any{
				"session_id": sid,
				"features":   featuresJSON,
				"block_size": blockSize,
			})
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Session id (defaults to the connection string's session path component)")
	cmd.Flags().StringVar(&featuresJSON, "features", "[]", "JSON array of opaque per-frame feature payloads")
	cmd.Flags().IntVar(&blockSize, "block-size", 1<<30, "Max frames to consume this call")
	return cmd
}

func newGetLatticeCmd(c *cli) *cobra.Command {
	var sessionID, format string

	cmd := &cobra.Command{
		Use:   "get-lattice",
		Short: "Fetch the current word lattice for a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			sid := resolveSession(c, sessionID)
			out, err := c.callTool(cmd.Context(), "decoder_get_lattice", map[string]any{
				"session_id": sid,
				"format":     format,
			})
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Session id")
	cmd.Flags().StringVar(&format, "format", "slf", "slf or msgpack")
	return cmd
}

func newGetTimedBestCmd(c *cli) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "get-timed-best-result",
		Short: "Fetch the single best timed word sequence for a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			sid := resolveSession(c, sessionID)
			out, err := c.callTool(cmd.Context(), "decoder_get_timed_best_result", map[string]any{
				"session_id": sid,
			})
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Session id")
	return cmd
}

func resolveSession(c *cli, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return c.conn.SessionID
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// ensureClient lazily connects and completes the MCP initialize
// handshake. The connection string's password doubles as the decode
// server's X-API-Key when set.
func (c *cli) ensureClient(ctx context.Context) error {
	if c.client != nil {
		return nil
	}

	var opts []transport.StreamableHTTPCOption
	if c.conn.Password != "" {
		opts = append(opts, transport.WithHTTPHeaders(map[string]string{
			"X-API-Key": c.conn.Password,
		}))
	}

	cl, err := mcpclient.NewStreamableHttpClient(c.conn.BaseURL()+"/mcp", opts...)
	if err != nil {
		return fmt.Errorf("building MCP client: %w", err)
	}
	if err := cl.Start(ctx); err != nil {
		return fmt.Errorf("starting MCP transport: %w", err)
	}

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	initReq := mcpproto.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpproto.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcpproto.Implementation{Name: "decode-cli", Version: "1.0.0"}
	if _, err := cl.Initialize(initCtx, initReq); err != nil {
		return fmt.Errorf("MCP initialize failed: %w", err)
	}

	c.client = cl
	return nil
}

// callTool invokes one MCP tool and decodes its structured-result JSON
// blob (the second TextContent mcp.structuredResult appends) into a map.
func (c *cli) callTool(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	if err := c.ensureClient(ctx); err != nil {
		return nil, err
	}

	req := mcpproto.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := c.client.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", name, err)
	}
	if res.IsError {
		return nil, fmt.Errorf("%s: %s", name, contentText(res.Content))
	}

	for _, content := range res.Content {
		text, ok := content.(mcpproto.TextContent)
		if !ok {
			continue
		}
		var out map[string]any
		if err := json.Unmarshal([]byte(text.Text), &out); err == nil {
			return out, nil
		}
	}
	return nil, fmt.Errorf("%s: no structured result in response", name)
}

func contentText(content []mcpproto.Content) string {
	for _, c := range content {
		if t, ok := c.(mcpproto.TextContent); ok {
			return t.Text
		}
	}
	return "(no message)"
}
