// Package commands implements the rbh-find command line interface.
package commands

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rbh-project/rbh/internal/logger"
)

var (
	// Version information injected at build time.
	Version = "dev"

	cfgFile string
	flags   findFlags
)

// findFlags holds the predicate and output flags of a single run.
type findFlags struct {
	name      string
	iname     string
	fileType  string
	uid       int64
	gid       int64
	size      string
	newerThan int64
	inum      uint64
	symlink   string
	ls        bool
}

// rootCmd represents the finder invocation: rbh-find URI [flags].
var rootCmd = &cobra.Command{
	Use:   "rbh-find URI",
	Short: "Find filesystem entries in a metadata index",
	Long: `rbh-find queries a filesystem metadata index through its backend URI
and prints the entries matching the given predicates, walking no
filesystem at all.

Backends are addressed by URI: "mongo:foo" queries the mongo index of
filesystem "foo", "badger:/var/lib/rbh/scratch" an embedded index, and
"rbh:myplugin:arg" routes through the plugin loader.

Predicates combine as a conjunction, like find(1):

  rbh-find mongo:scratch --name '*.c' --newer-than 1700000000
  rbh-find badger:/tmp/idx --type d --ls`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runFind,
}

// Execute runs the command line. It is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/rbh/config.yaml)")

	rootCmd.Flags().StringVar(&flags.name, "name", "", "match entry name against a glob pattern")
	rootCmd.Flags().StringVar(&flags.iname, "iname", "", "like --name, case-insensitive")
	rootCmd.Flags().StringVar(&flags.fileType, "type", "", "entry type: f, d, l, b, c, p or s")
	rootCmd.Flags().Int64Var(&flags.uid, "uid", -1, "match owner user id")
	rootCmd.Flags().Int64Var(&flags.gid, "gid", -1, "match owner group id")
	rootCmd.Flags().StringVar(&flags.size, "size", "", "match size: N, +N or -N bytes")
	rootCmd.Flags().Int64Var(&flags.newerThan, "newer-than", -1, "match mtime at or after the given epoch seconds")
	rootCmd.Flags().Uint64Var(&flags.inum, "inum", 0, "match inode number")
	rootCmd.Flags().StringVar(&flags.symlink, "lname", "", "match symlink target against a glob pattern")
	rootCmd.Flags().BoolVar(&flags.ls, "ls", false, "print a long listing instead of paths")

	rootCmd.Version = Version
}

// initConfig wires viper: flags beat environment beats config file.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("$XDG_CONFIG_HOME/rbh")
		viper.AddConfigPath("$HOME/.config/rbh")
	}

	viper.SetEnvPrefix("RBH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("log.level", "WARN")
	viper.SetDefault("log.format", "text")

	// A missing config file is fine; a broken one is not worth dying
	// for in a read-only query tool.
	_ = viper.ReadInConfig()

	_ = logger.Init(logger.Config{
		Level:  viper.GetString("log.level"),
		Format: viper.GetString("log.format"),
		Output: "stderr",
	})
}
