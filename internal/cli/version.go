package cli

import (
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/CoinSpace/cs-bitcoin-wallet/internal/chain"
	"github.com/CoinSpace/cs-bitcoin-wallet/internal/version"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var versionCheck bool

// releasesURL is a variable so tests can point it at a local server.
//
//nolint:gochecknoglobals // swappable for tests
var releasesURL = version.ReleasesURL

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the cswallet version",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

type versionView struct {
	version.Info
}

func (v versionView) RenderText(w io.Writer) error {
	out(w, "cswallet %s (%s, %s)\n", v.Version, v.GoVersion, v.Platform)
	if v.Commit != "" {
		out(w, "commit %s built %s\n", v.Commit, v.Date)
	}
	switch {
	case v.Newer:
		out(w, "A newer release is available: %s\n", v.Latest)
	case v.Latest != "":
		outln(w, "You are running the latest release.")
	}
	return nil
}

func runVersion(cmd *cobra.Command, _ []string) error {
	if !versionCheck {
		return formatter.Print(versionView{version.Current()})
	}

	transport, err := chain.NewTransport(chain.TransportOptions{
		BaseURL:    releasesURL,
		Name:       "releases",
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Observer:   registry,
		UserAgent:  version.UserAgent(),
	})
	if err != nil {
		return err
	}
	ctx, cancel := contextWithTimeout(cmd, 30*time.Second)
	defer cancel()

	info, err := version.Check(ctx, transport)
	if err != nil {
		return err
	}
	return formatter.Print(versionView{info})
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	versionCmd.Flags().BoolVar(&versionCheck, "check", false, "check for a newer release")
	rootCmd.AddCommand(versionCmd)
}
