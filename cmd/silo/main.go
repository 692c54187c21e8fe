// Command silo operates on a transformed key-value store declared in a
// YAML configuration file.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/zoobzio/silo"
	"github.com/zoobzio/silo/config"
)

func main() {
	app := &cli.App{
		Name:  "silo",
		Usage: "Read and write a key-value store through its transform pipeline",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "silo.yaml",
				Usage:   "pipeline configuration file",
			},
		},
		Commands: []*cli.Command{
			getCommand,
			putCommand,
			delCommand,
			keysCommand,
			existsCommand,
			incrCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "silo:", err)
		os.Exit(1)
	}
}

// openStore loads the configured store for one command invocation.
func openStore(c *cli.Context) (*silo.Store, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	return cfg.Open()
}

var getCommand = &cli.Command{
	Name:      "get",
	Usage:     "Load and print the value stored at KEY",
	ArgsUsage: "KEY",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "raw", Usage: "skip value decoding"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return errors.New("get expects exactly one KEY")
		}
		store, err := openStore(c)
		if err != nil {
			return err
		}
		defer store.Close()

		var opts []silo.CallOption
		if c.Bool("raw") {
			opts = append(opts, silo.Raw())
		}
		v, found, err := store.Load(c.Args().First(), opts...)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("key %q not found", c.Args().First())
		}
		printValue(v)
		return nil
	},
}

var putCommand = &cli.Command{
	Name:      "put",
	Usage:     "Store VALUE at KEY",
	ArgsUsage: "KEY VALUE",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "raw", Usage: "skip value encoding"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return errors.New("put expects KEY VALUE")
		}
		store, err := openStore(c)
		if err != nil {
			return err
		}
		defer store.Close()

		var opts []silo.CallOption
		if c.Bool("raw") {
			opts = append(opts, silo.Raw())
		}
		return store.Store(c.Args().Get(0), c.Args().Get(1), opts...)
	},
}

var delCommand = &cli.Command{
	Name:      "del",
	Usage:     "Delete KEY and print the value it held",
	ArgsUsage: "KEY",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return errors.New("del expects exactly one KEY")
		}
		store, err := openStore(c)
		if err != nil {
			return err
		}
		defer store.Close()

		v, found, err := store.Delete(c.Args().First())
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("key %q not found", c.Args().First())
		}
		printValue(v)
		return nil
	},
}

var keysCommand = &cli.Command{
	Name:  "keys",
	Usage: "List every key, decoded",
	Action: func(c *cli.Context) error {
		store, err := openStore(c)
		if err != nil {
			return err
		}
		defer store.Close()

		keys, err := store.Keys()
		if err != nil {
			return err
		}
		for _, k := range keys {
			fmt.Println(k)
		}
		return nil
	},
}

var existsCommand = &cli.Command{
	Name:      "exists",
	Usage:     "Report whether KEY is present (exit status 1 when absent)",
	ArgsUsage: "KEY",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return errors.New("exists expects exactly one KEY")
		}
		store, err := openStore(c)
		if err != nil {
			return err
		}
		defer store.Close()

		ok, err := store.Exists(c.Args().First())
		if err != nil {
			return err
		}
		if !ok {
			return cli.Exit("absent", 1)
		}
		fmt.Println("present")
		return nil
	},
}

var incrCommand = &cli.Command{
	Name:      "incr",
	Usage:     "Increment the counter at KEY and print the new total",
	ArgsUsage: "KEY",
	Flags: []cli.Flag{
		&cli.Int64Flag{Name: "by", Value: 1, Usage: "amount to add"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return errors.New("incr expects exactly one KEY")
		}
		store, err := openStore(c)
		if err != nil {
			return err
		}
		defer store.Close()

		total, err := store.Increment(c.Args().First(), c.Int64("by"))
		if err != nil {
			return err
		}
		fmt.Println(total)
		return nil
	},
}

// printValue renders byte values as text and everything else via %v.
func printValue(v any) {
	if b, ok := v.([]byte); ok {
		fmt.Println(string(b))
		return
	}
	fmt.Printf("%v\n", v)
}
