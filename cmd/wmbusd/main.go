// Command wmbusd is the wmbusmeters daemon: it reads wM-Bus telegrams off a
// serial dongle (or replays a simulation file), decodes them against the
// built-in driver registry, and publishes the resulting records to MQTT.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/tarm/serial"

	"github.com/serebryakov7/wmbusmeters/internal/driver"
	"github.com/serebryakov7/wmbusmeters/internal/meters"
	"github.com/serebryakov7/wmbusmeters/pkg/decodepool"
	"github.com/serebryakov7/wmbusmeters/pkg/decodeserver"
	"github.com/serebryakov7/wmbusmeters/pkg/hostio"
	"github.com/serebryakov7/wmbusmeters/pkg/simulation"
)

const (
	defaultPortName = "/dev/ttyUSB0"
	defaultBaudRate = 9600
	defaultDedupDB  = "wmbusd_dedup.db"
)

var (
	portName     = flag.String("port", defaultPortName, "serial port of the wM-Bus dongle")
	baudRate     = flag.Int("baud", defaultBaudRate, "serial baud rate")
	simFile      = flag.String("simulation", "", "replay frames from a simulation file instead of the serial port")
	mqttBroker   = flag.String("broker", hostio.DefaultBroker, "MQTT broker")
	mqttTopic    = flag.String("topic", hostio.DefaultTopic, "MQTT topic")
	dedupDBPath  = flag.String("dedup-db", defaultDedupDB, "path to the retransmit-dedup database")
	keysFilePath = flag.String("keys", "", "file of AES keys, one MFCT:ID=HEXKEY per line")
	listenAddr   = flag.String("listen", "", "if set, also start the TCP decoding service (see pkg/decodeserver)")
	workers      = flag.Int("workers", 4, "number of parallel decode workers")
)

func main() {
	flag.Parse()

	reg := driver.NewRegistry()
	if err := meters.RegisterAll(reg); err != nil {
		log.Fatalf("driver registration failed: %v", err)
	}

	keys, err := loadKeys(*keysFilePath)
	if err != nil {
		log.Fatalf("failed to load keys: %v", err)
	}

	dedup, err := hostio.OpenDedupStore(*dedupDBPath)
	if err != nil {
		log.Fatalf("failed to open dedup database: %v", err)
	}
	defer dedup.Close()

	sink := hostio.NewMQTTSink(hostio.MQTTConfig{
		Broker:   *mqttBroker,
		ClientID: "wmbusd",
		Topic:    *mqttTopic,
	})
	if err := sink.Connect(); err != nil {
		log.Fatalf("failed to connect to MQTT: %v", err)
	}
	defer sink.Disconnect()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("shutting down...")
		cancel()
	}()

	if *listenAddr != "" {
		srv := &decodeserver.Server{Addr: *listenAddr, Reg: reg, Keys: keys.lookup, Clock: isoNowClock}
		go func() {
			if err := srv.Run(); err != nil {
				log.Printf("decodeserver exited with error: %v", err)
			}
		}()
	}

	frames, stop, err := openFrameSource(*simFile, *portName, *baudRate)
	if err != nil {
		log.Fatalf("failed to open frame source: %v", err)
	}
	defer stop()

	pool := decodepool.New(*workers, reg, keys.lookup, isoNowClock)

	log.Println("wmbusd started. Press Ctrl+C to stop")
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			records, errs := pool.DecodeAll(ctx, [][]byte{frame})
			rec, decErr := records[0], errs[0]
			if decErr != nil {
				log.Printf("frame decode error: %v", decErr)
				continue
			}
			sink.Publish(rec)
		}
	}
}

func openFrameSource(simFile, portName string, baud int) (<-chan []byte, func(), error) {
	if simFile != "" {
		f, err := os.Open(simFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open simulation file: %w", err)
		}
		lines, err := simulation.Parse(bufio.NewReader(f))
		f.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse simulation file: %w", err)
		}
		player := simulation.NewPlayer(lines)
		player.Start()
		return player.Frames, player.Stop, nil
	}

	source, err := hostio.OpenSerialSource(&serial.Config{Name: portName, Baud: baud, ReadTimeout: 100 * time.Millisecond})
	if err != nil {
		return nil, nil, err
	}
	source.Start()
	stop := func() { source.Stop() }
	return source.Frames, stop, nil
}

func isoNowClock() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z")
}

// keyTable resolves AES keys by (manufacturer, id) pair, loaded from a
// simple "MFCT:ID=HEXKEY" text file: no global key store, keys are owned
// by this lookup, which is threaded explicitly into every decode call
// rather than stashed behind a package-level variable.
type keyTable struct {
	byMeter map[string]string
}

func loadKeys(path string) (*keyTable, error) {
	kt := &keyTable{byMeter: map[string]string{}}
	if path == "" {
		return kt, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: expected MFCT:ID=HEXKEY, got %q", lineNo, line)
		}
		kt.byMeter[parts[0]] = parts[1]
	}
	return kt, scanner.Err()
}

func (kt *keyTable) lookup(mfct uint16, id uint32) []byte {
	hexKey, ok := kt.byMeter[fmt.Sprintf("%04X:%08d", mfct, id)]
	if !ok {
		return nil
	}
	raw, err := decodeHexKey(hexKey)
	if err != nil {
		log.Printf("key for %04X:%08d is invalid: %v", mfct, id, err)
		return nil
	}
	return raw
}

func decodeHexKey(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd-length hex string")
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		b, err := strconv.ParseUint(s[i*2:i*2+2], 16, 8)
		if err != nil {
			return nil, err
		}
		out[i] = byte(b)
	}
	return out, nil
}
