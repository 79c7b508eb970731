// Command otelnet is an interactive Telnet client with an integrated
// file-transfer engine: Kermit embedded, XMODEM/YMODEM/ZMODEM driven
// through cooperating external helper processes, all multiplexed over
// the single TCP connection without tearing the session down.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/drake/otelnet/internal/config"
	"github.com/drake/otelnet/internal/detect"
	"github.com/drake/otelnet/internal/kermitengine"
	"github.com/drake/otelnet/internal/logging"
	"github.com/drake/otelnet/internal/session"
	"github.com/drake/otelnet/internal/telnet"
	"github.com/drake/otelnet/internal/terminal"
	"github.com/drake/otelnet/internal/transfer"
	"github.com/drake/otelnet/internal/transport"
)

const version = "0.1.0"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  = flag.String("c", "", "path to the configuration file (default: "+config.DefaultPath()+")")
		showVersion = flag.Bool("v", false, "print the version and exit")
	)
	flag.BoolVar(showVersion, "version", false, "print the version and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-c config] <host> <port>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println("otelnet", version)
		return 0
	}

	args := flag.Args()
	if len(args) != 2 {
		flag.Usage()
		return 2
	}
	host, port := args[0], args[1]

	path := *configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfgFile, err := config.Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger := logging.New("otelnet: ")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	signal.Ignore(syscall.SIGPIPE)

	conn, err := transport.Dial(ctx, fmt.Sprintf("%s:%s", host, port))
	if err != nil {
		logger.Println(err)
		return 1
	}
	defer conn.Close()

	raw, err := terminal.MakeRaw(os.Stdin)
	if err != nil {
		logger.Println(err)
		return 1
	}
	defer raw.Restore()
	if err := raw.SetInteractiveTiming(); err != nil {
		logger.Println(err)
	}

	var sessionLog *logging.SessionLog
	if cfgFile.Log {
		logPath := cfgFile.LogFile
		if logPath == "" {
			logPath = "otelnet.log"
		}
		sessionLog, err = logging.Open(logPath)
		if err != nil {
			logger.Println(err)
		} else {
			defer sessionLog.Close()
		}
	}

	engine := telnet.New()
	for _, ev := range engine.OpeningOffers() {
		if ev.Kind == telnet.EventSend {
			conn.Write(ev.Data)
		}
	}

	transferCfg := transfer.DefaultConfig()
	transferCfg.HelperPath = helperResolver(cfgFile)

	detector := detect.New()
	coord := transfer.New(engine, conn, detector, transferCfg)

	loop := &session.Loop{
		Telnet:         engine,
		Socket:         conn,
		Detect:         detector,
		Coord:          coord,
		Window:         terminal.NewStdoutWindow(os.Stdout),
		Out:            os.Stdout,
		Log:            sessionLog,
		KermitEngine:   kermitengine.New(),
		HelperLauncher: transfer.ExecLauncher{},
	}

	sigwin := make(chan os.Signal, 1)
	signal.Notify(sigwin, syscall.SIGWINCH)
	defer signal.Stop(sigwin)
	resize := make(chan struct{}, 1)
	go func() {
		for range sigwin {
			select {
			case resize <- struct{}{}:
			default:
			}
		}
	}()

	if err := loop.Run(ctx, os.Stdin, resize); err != nil {
		logger.Println(err)
		return 1
	}
	return 0
}

// helperResolver maps a transfer protocol/direction to the external
// helper binary and its arguments, honoring the config file's
// SEND_ZMODEM/RECEIVE_ZMODEM overrides and falling back to the
// conventional lrzsz binary names (§6).
func helperResolver(cfgFile config.File) func(p transfer.Protocol, dir transfer.Direction) (string, []string) {
	return func(p transfer.Protocol, dir transfer.Direction) (string, []string) {
		sending := dir == transfer.Send
		switch p {
		case transfer.ProtoZModem:
			if sending && cfgFile.SendZMODEM != "" {
				return cfgFile.SendZMODEM, nil
			}
			if !sending && cfgFile.ReceiveZMODEM != "" {
				return cfgFile.ReceiveZMODEM, nil
			}
			if sending {
				return "sz", []string{"-b"}
			}
			return "rz", []string{"-b"}
		case transfer.ProtoXModem:
			if sending {
				return "sx", nil
			}
			return "rx", nil
		default: // ProtoYModem
			if sending {
				return "sb", nil
			}
			return "rb", nil
		}
	}
}
