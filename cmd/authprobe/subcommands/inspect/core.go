//
//  Copyright © HXCI Campus Portal. All rights reserved.
//

package inspect

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	clicommon "github.com/hxci-campus/authprobe/cmd/authprobe/common"
	"github.com/hxci-campus/authprobe/pkg/common"
	"github.com/hxci-campus/authprobe/pkg/oracle/token"
	"github.com/hxci-campus/authprobe/pkg/oracle/verdict"
	"github.com/urfave/cli/v3"
)

// Execute decodes a token from --input (a file, or '-' for stdin),
// prints its header and claims, and runs the claim audit against it.
// Exits non-zero when the audit finds a violation.
func Execute(ctx context.Context, cmd *cli.Command) error {
	if err := clicommon.Setup(cmd); err != nil {
		return err
	}

	raw, err := readToken(cmd.String("input"))
	if err != nil {
		return err
	}

	claims, err := token.Inspect(raw)
	if err != nil {
		return err
	}

	fmt.Println("header:")
	common.PrettyPrint(claims.Header)
	fmt.Printf("payload (%d bytes):\n", claims.PayloadSize())
	common.PrettyPrint(claims.Payload)
	fmt.Println()

	failed := 0
	for _, f := range token.Audit("token", claims, token.DefaultAuditConfig(), time.Now()) {
		if f.Classification == verdict.Pass {
			fmt.Printf("%s: PASS\n", f.Name)
		} else {
			fmt.Printf("%s: FAIL [%s] (%s)\n", f.Name, f.Severity, f.Detail)
			failed++
		}
	}

	if failed > 0 {
		return cli.Exit("", 1)
	}
	return nil
}

// readToken loads the token text from a file, or stdin for '-'. An empty
// input path is an error; tokens on the command line would leak into
// shell history, so a file or pipe is required.
func readToken(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("no token specified, use --input FILE or '-' for stdin")
	}

	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path) // #nosec G304 -- CLI tool intentionally reads user-provided paths
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}

	return strings.TrimSpace(string(data)), nil
}
