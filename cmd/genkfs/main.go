// The genkfs command writes a KFS filesystem into a ROM image,
// populated with the contents of a model directory. The ROM must
// already exist: its length determines the filesystem geometry, and its
// kernel pages are preserved.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/knightos/genkfs/arith"
	"github.com/knightos/genkfs/deviceprofile"
	"github.com/knightos/genkfs/fstree"
	"github.com/knightos/genkfs/humanize"
	"github.com/knightos/genkfs/kfs"
	"github.com/knightos/genkfs/modeflag"
	"github.com/knightos/genkfs/rom"
)

var (
	cfgFile string
	verbose bool
	device  string
)

var rootCmd = &cobra.Command{
	Use:   "genkfs <rom> <model>",
	Short: "Write a KFS filesystem into a ROM image",
	Long: `genkfs writes a KFS filesystem into a ROM image and copies the
contents of a model directory into its root. The ROM must already
exist; its length determines the filesystem geometry, and the kernel
pages are left untouched. The target may also be a block device.`,
	Args:          cobra.ExactArgs(2),
	RunE:          runBuild,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is $HOME/.config/genkfs/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.Flags().StringVar(&device, "device", "", "refuse to build unless the ROM matches this calculator model, e.g. ti84pse")
	modeflag.RegisterPflags(rootCmd.Flags())
}

// initConfig reads the config file and environment. The --arith flag
// wins over GENKFS_ARITH, which wins over the config file.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := homedir.Dir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config", "genkfs"))
		viper.SetConfigName("config")
	}
	viper.SetEnvPrefix("genkfs")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return // building without a config file is the common case
	}
	if viper.IsSet("arith") &&
		!rootCmd.Flags().Changed("arith") &&
		os.Getenv("GENKFS_ARITH") == "" {
		modeflag.SetMode(viper.GetString("arith"))
	}
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	return cfg.Build()
}

func runBuild(cmd *cobra.Command, args []string) error {
	romPath, modelPath := args[0], args[1]

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	mode, err := modeflag.Mode()
	if err != nil {
		return err
	}
	policy := arith.ForMode(mode)
	logger.Debug("selected arithmetic policy", zap.Stringer("mode", mode))

	img, err := rom.Load(romPath)
	if err != nil {
		return err
	}
	logger.Debug("loaded ROM",
		zap.String("path", romPath),
		zap.String("size", humanize.Bytes(uint64(img.Size()))))

	if device != "" {
		profile, ok := deviceprofile.BySlug(device)
		if !ok {
			return fmt.Errorf("unknown device %q (known devices: %s)",
				device, strings.Join(deviceprofile.Slugs(), ", "))
		}
		if err := profile.CheckROMSize(img.Size()); err != nil {
			return err
		}
	}

	g, err := kfs.GeometryForROM(img.Size(), policy)
	if err != nil {
		return err
	}

	tree, err := fstree.Collect(modelPath)
	if err != nil {
		return err
	}

	layout, err := kfs.Plan(tree, g, policy)
	if err != nil {
		return err
	}
	for _, rec := range layout.Records {
		if rec.Kind == kfs.EntrySymlink {
			logger.Info("adding link",
				zap.String("path", rec.Path),
				zap.String("target", rec.Target))
			continue
		}
		logger.Info("adding", zap.String("path", rec.Path))
	}

	writes, err := kfs.Encode(layout, policy)
	if err != nil {
		return err
	}
	if err := img.Apply(writes); err != nil {
		return err
	}
	if err := img.Commit(); err != nil {
		return err
	}
	logger.Debug("filesystem written",
		zap.String("fat", humanize.Pages(uint64(layout.FatPages()), kfs.PageLength)),
		zap.String("data", humanize.Pages(uint64(layout.DataPages()), kfs.PageLength)))

	fmt.Printf("Filesystem successfully written to %s.\n", romPath)
	fmt.Print("Indexes of written data pages: ")
	for i := uint32(0); i < uint32(layout.DataPages()); i++ {
		fmt.Printf("%02x ", uint32(g.DatStart)+i)
	}
	fmt.Print("\nIndexes of written FAT pages: ")
	for i := uint32(0); i < uint32(layout.FatPages()); i++ {
		fmt.Printf("%02x ", uint32(g.FatStart)-i)
	}
	fmt.Println("\nThe rest of the pages (except kernels' 00-03) are empty.")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
