// Command node runs a permissioned-ledger node's identity and network-map
// synchronization core: it loads the node's already-issued legal-identity
// certificate, signs and publishes its node-info descriptor to a zone,
// polls the zone's network map, reconciles a local peer cache against it,
// and prompts the operator for consent before adopting a pending network
// parameters update.
package main

import (
	"bufio"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/andrea-athirat/corda/internal/networkmap"
	"github.com/andrea-athirat/corda/internal/nodecache"
	"github.com/andrea-athirat/corda/internal/nodeidentity"
	"github.com/andrea-athirat/corda/internal/nodewatch"
	"github.com/andrea-athirat/corda/internal/wire"
)

var cfgFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "node",
	Short: "Ledger node identity and network-map synchronization daemon",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			viper.SetConfigName("node")
			viper.SetConfigType("yaml")
			viper.AddConfigPath("configs")
			viper.AddConfigPath(".")
		}
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		viper.AutomaticEnv()

		viper.SetDefault("node.state_dir", "node-state")
		viper.SetDefault("node.node_info_dir", "node-state/peers")
		viper.SetDefault("node.identity_cert", "node-state/identity.crt")
		viper.SetDefault("node.identity_key", "node-state/identity.key")
		viper.SetDefault("node.trust_root", "node-state/trust-root.crt")
		viper.SetDefault("node.intermediate_cert", "")
		viper.SetDefault("node.platform_version", 1)

		if err := viper.ReadInConfig(); err != nil {
			var cfgNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &cfgNotFound) {
				return fmt.Errorf("read config: %w", err)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./node.yaml)")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the network-map synchronization loop",
	RunE:  runNode,
}

func runNode(cmd *cobra.Command, args []string) error {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	identity, err := nodeidentity.Load(
		viper.GetString("node.identity_cert"),
		viper.GetString("node.identity_key"),
		viper.GetString("node.trust_root"),
		viper.GetString("node.intermediate_cert"),
	)
	if err != nil {
		return fmt.Errorf("load node identity: %w", err)
	}

	zoneURL := viper.GetString("node.zone_url")
	var client *networkmap.Client
	if zoneURL != "" {
		client = networkmap.NewClient(zoneURL, identity.TrustRoot, nil)
	} else {
		logger.Warn("node.zone_url not set, running in offline mode")
	}

	currentParametersHash, err := parseHash(viper.GetString("node.network_parameters_hash"))
	if err != nil {
		return fmt.Errorf("parse node.network_parameters_hash: %w", err)
	}

	stateDir := viper.GetString("node.state_dir")
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	watcher, err := nodewatch.NewDirWatcher(viper.GetString("node.node_info_dir"), logger)
	if err != nil {
		return fmt.Errorf("start node-info watcher: %w", err)
	}
	defer watcher.Close() //nolint:errcheck

	cache := nodecache.NewMemoryCache()
	updater := networkmap.NewUpdater(cache, watcher, client, currentParametersHash, stateDir, logger)
	defer updater.Close() //nolint:errcheck

	var intermediates []*x509.Certificate
	if identity.IntermediateCert != nil {
		intermediates = append(intermediates, identity.IntermediateCert)
	}
	sign := func(info nodecache.NodeInfo) (*nodecache.SignedNodeInfo, error) {
		return wire.SignValue[nodecache.NodeInfo](info, identity.Key, identity.Cert, intermediates...)
	}
	signHash := func(h nodecache.Hash) (*networkmap.SignedHash, error) {
		return wire.SignValue[nodecache.Hash](h, identity.Key, identity.Cert, intermediates...)
	}

	info := nodecache.NodeInfo{
		LegalIdentities: []string{identity.Cert.Subject.String()},
		Serial:          time.Now().UnixNano(),
		Addresses:       viper.GetStringSlice("node.addresses"),
		PlatformVersion: viper.GetInt("node.platform_version"),
	}
	if err := updater.UpdateNodeInfo(info, sign); err != nil {
		return fmt.Errorf("publish initial node info: %w", err)
	}

	if err := updater.SubscribeToNetworkMap(); err != nil {
		return fmt.Errorf("subscribe to network map: %w", err)
	}
	logger.Info("node started",
		zap.String("legal_identity", identity.Cert.Subject.String()),
		zap.String("zone_url", zoneURL),
	)

	pending, updates, unsubscribe := updater.Track()
	defer unsubscribe()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go promptForConsent(pending, updates, updater, signHash, logger)

	<-quit
	logger.Info("node shutting down")
	return nil
}

// promptForConsent prints every pending network parameters update to stdout
// and reads an operator's accept/reject decision from stdin before calling
// AcceptNewNetworkParameters.
func promptForConsent(initial *networkmap.ParametersUpdateInfo, updates <-chan networkmap.ParametersUpdateInfo, updater *networkmap.Updater, signHash networkmap.SignHashFunc, logger *zap.Logger) {
	reader := bufio.NewReader(os.Stdin)

	announce := func(u networkmap.ParametersUpdateInfo) {
		fmt.Printf("\nPending network parameters update:\n")
		fmt.Printf("  Hash:        %s\n", u.Hash)
		fmt.Printf("  Description: %s\n", u.Description)
		fmt.Printf("  Flag day:    %s\n", u.FlagDay.Format(time.RFC3339))
		fmt.Print("Accept? [y/N]: ")
	}

	consider := func(u networkmap.ParametersUpdateInfo) {
		announce(u)
		answer, _ := reader.ReadString('\n')
		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			fmt.Println("Update left pending.")
			return
		}
		if err := updater.AcceptNewNetworkParameters(u.Hash, signHash); err != nil {
			logger.Error("accept network parameters failed", zap.Error(err))
			return
		}
		fmt.Println("✓ Accepted, acknowledging to zone")
	}

	if initial != nil {
		consider(*initial)
	}
	for u := range updates {
		consider(u)
	}
}

func parseHash(s string) (nodecache.Hash, error) {
	var h nodecache.Hash
	if s == "" {
		return h, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("decode hex: %w", err)
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("expected %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}
