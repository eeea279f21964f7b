package main

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/bridgelens-io/bridgelens/cmd"
	"github.com/bridgelens-io/bridgelens/logconfig"
)

const (
	ENV_CONFIG_FILE_PATH = "BRIDGELENS_CONFIG"
)

func main() {
	// Tool to read environment variables
	viper.AutomaticEnv()

	logconfig.ConfigProductionLogger(viper.GetString("LOG_LEVEL"))

	// Accessing an environment variable of configuration file location.
	_config_file := viper.GetString(ENV_CONFIG_FILE_PATH)
	fmt.Printf("Watch server configuration file = %s\n", _config_file)

	// See if file exists
	if !cmd.FileExists(_config_file) {
		fmt.Printf("Watch server configuration file not found: %s\n", _config_file)
		return
	}

	// Read from config file.
	success := initializeViper(_config_file)
	if !success {
		return
	}

	// Make the configuration
	wsc := PrepareWatchServerConfig()
	if wsc == nil {
		fmt.Printf("Error loading watch server configuration\n")
		return
	}

	fmt.Println("Starting watch server... press Ctrl+C to kill the server")
	// Start server and block.
	cmd.StartWatchServerAndWait(wsc)
}

func initializeViper(filePath string) bool {
	viper.SetConfigFile(filePath)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf("Error reading configuration file, %s", err)
		return false
	}
	return true
}

// PrepareWatchServerConfig reads configuration variables and returns a WatchServerConfig.
func PrepareWatchServerConfig() *cmd.WatchServerConfig {

	// *** prepare objects that aren't string type ***

	home := cmd.NetworkConfig{
		Network:         viper.GetString("HOME_NETWORK"),
		RpcUrls:         cmd.SplitList(viper.GetString("HOME_RPC_URLS")),
		ExportBridges:   cmd.SplitList(viper.GetString("HOME_EXPORT_BRIDGES")),
		ImportBridges:   cmd.SplitList(viper.GetString("HOME_IMPORT_BRIDGES")),
		SecondsPerBlock: viper.GetInt64("HOME_SECONDS_PER_BLOCK"),
	}
	far := cmd.NetworkConfig{
		Network:         viper.GetString("FAR_NETWORK"),
		RpcUrls:         cmd.SplitList(viper.GetString("FAR_RPC_URLS")),
		ExportBridges:   cmd.SplitList(viper.GetString("FAR_EXPORT_BRIDGES")),
		ImportBridges:   cmd.SplitList(viper.GetString("FAR_IMPORT_BRIDGES")),
		SecondsPerBlock: viper.GetInt64("FAR_SECONDS_PER_BLOCK"),
	}

	if home.Network == "" || far.Network == "" || len(home.RpcUrls) == 0 || len(far.RpcUrls) == 0 {
		fmt.Printf("Both HOME_NETWORK and FAR_NETWORK need a name and rpc urls\n")
		return nil
	}

	// *** end of preparing objects ***

	return &cmd.WatchServerConfig{
		// chain side
		HomeNetwork: home,
		FarNetwork:  far,
		// fetch side
		WindowHours: viper.GetFloat64("WINDOW_HOURS"),
		ClaimLimit:  viper.GetInt("CLAIM_LIMIT"),
		// cache side
		StoreBackend:    viper.GetString("STORE_BACKEND"),
		DbFilePath:      viper.GetString("DB_FILE_PATH"),
		RedisURL:        viper.GetString("REDIS_URL"),
		StaleAfter:      viper.GetDuration("STALE_AFTER"),
		RefreshInterval: refreshInterval(),
		// monitoring preferences
		ActiveAccount:  viper.GetString("ACTIVE_ACCOUNT"),
		MinTransferAge: viper.GetDuration("MIN_TRANSFER_AGE"),
		// Http side
		HttpIp:   viper.GetString("HTTP_IP"),
		HttpPort: viper.GetString("HTTP_PORT"),
	}
}

// refreshInterval distinguishes "unset" (use the default) from an explicit 0
// (turn the background loop off, refresh over http only).
func refreshInterval() time.Duration {
	if !viper.IsSet("REFRESH_INTERVAL") {
		return 5 * time.Minute
	}
	return viper.GetDuration("REFRESH_INTERVAL")
}
