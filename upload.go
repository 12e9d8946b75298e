package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/rmcloud-upload/internal/cloud"
	"github.com/tonimelisma/rmcloud-upload/internal/config"
	"github.com/tonimelisma/rmcloud-upload/internal/ledger"
	"github.com/tonimelisma/rmcloud-upload/internal/upload"
)

// debugBundleName is the copy of the last uploaded bundle kept with --debug.
const debugBundleName = "last-bundle.zip"

func runUpload(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	logger := cc.Logger

	runCtx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	ctx := shutdownContext(runCtx, logger)

	network := cc.Store.Network()
	httpClient := defaultHTTPClient(network.Timeout)

	newClient := func(cred config.DeviceCredential) upload.Client {
		return cloud.NewClient(cred.DeviceToken, httpClient, cloud.Options{
			StorageURL: network.StorageURL,
			WebappURL:  network.WebappURL,
			MaxRetries: network.MaxRetries,
		}, logger.With(slog.String("device", cred.Name)))
	}

	var recorder upload.Recorder

	if !cc.Flags.NoHistory {
		if l := openHistory(ctx, cc); l != nil {
			defer l.Close()

			recorder = l
		}
	}

	req := upload.Request{
		Device:      cc.Store.ResolveDevice(cc.Flags.Device, cc.Env),
		Path:        args[0],
		VisibleName: cc.Flags.Name,
	}

	if cc.Flags.Debug {
		if dir := config.DefaultDataDir(); dir != "" {
			req.DebugBundlePath = filepath.Join(dir, debugBundleName)
		}
	}

	res, err := upload.NewUploader(cc.Store, newClient, recorder, logger).Run(ctx, req)
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		return printJSON(os.Stdout, res)
	}

	cc.Statusf("Uploaded %q to %s as %q (%s)\n", res.Path, res.Device, res.VisibleName, formatSize(res.Size))
	fmt.Println(res.DocumentID)

	return nil
}

// openHistory opens the upload history. Failures are logged and history is
// skipped: the upload itself must not depend on it.
func openHistory(ctx context.Context, cc *CLIContext) *ledger.Ledger {
	path := config.DefaultLedgerPath()
	if path == "" {
		cc.Logger.Warn("cannot determine data directory, upload history disabled")
		return nil
	}

	l, err := ledger.Open(ctx, path, cc.Logger)
	if err != nil {
		cc.Logger.Warn("upload history unavailable",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil
	}

	return l
}
