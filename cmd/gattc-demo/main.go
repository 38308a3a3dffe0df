// Command gattc-demo drives the GATT client procedure engine against a
// loopback transport, so its request/response shape can be exercised and
// read without a real radio.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/user/gattc/gatt"
	"github.com/user/gattc/gattc"
)

const demoConn uint16 = 1

func parseHandle(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	return uint16(v), err
}

func parseHexValue(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	b := make([]byte, len(s)/2)
	for i := range b {
		v, err := strconv.ParseUint(s[i*2:i*2+2], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid hex value %q: %w", s, err)
		}
		b[i] = byte(v)
	}
	return b, nil
}

func newEngine(entry *logrus.Entry) (*gattc.Engine, *demoTransport) {
	dt := newDemoTransport(entry)
	e := gattc.NewEngine(dt, dt, gattc.WithLogger(entry.Logger))
	return e, dt
}

func main() {
	log := logrus.New()
	log.Out = os.Stderr
	entry := log.WithField("component", "gattc-demo")

	app := cli.NewApp()
	app.Name = "gattc-demo"
	app.Usage = "drive the GATT client procedure engine against a loopback peer"
	app.Version = "0.1.0"

	app.Commands = []cli.Command{
		{
			Name:  "mtu",
			Usage: "exchange MTU on the demo connection",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "client-mtu", Value: 247},
			},
			Action: func(c *cli.Context) error {
				e, dt := newEngine(entry)
				done := make(chan struct{})
				e.ExchangeMTU(demoConn, uint16(c.Int("client-mtu")), func(conn uint16, mtu uint16, err error) {
					if err != nil {
						fmt.Printf("mtu exchange failed: %v\n", err)
					} else {
						fmt.Printf("negotiated MTU: %d\n", mtu)
					}
					close(done)
				})
				dt.drain(e)
				<-done
				return nil
			},
		},
		{
			Name:  "disc-services",
			Usage: "discover every primary service on the demo connection",
			Action: func(c *cli.Context) error {
				e, dt := newEngine(entry)
				done := make(chan struct{})
				e.DiscAllServices(demoConn, func(conn uint16, svc *gatt.DiscoveredService, err error) bool {
					if err != nil {
						fmt.Printf("discovery finished: %v\n", err)
						close(done)
						return false
					}
					fmt.Printf("service [0x%04X-0x%04X] uuid=%x\n", svc.StartHandle, svc.EndHandle, svc.UUID)
					return false
				})
				dt.drain(e)
				<-done
				return nil
			},
		},
		{
			Name:  "read",
			Usage: "read a single attribute handle",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "handle", Value: "0x0003"},
			},
			Action: func(c *cli.Context) error {
				handle, err := parseHandle(c.String("handle"))
				if err != nil {
					return err
				}
				e, dt := newEngine(entry)
				done := make(chan struct{})
				e.Read(demoConn, handle, func(conn uint16, handle uint16, value []byte, err error) {
					if err != nil {
						fmt.Printf("read failed: %v\n", err)
					} else {
						fmt.Printf("read 0x%04X = %q\n", handle, value)
					}
					close(done)
				})
				dt.drain(e)
				<-done
				return nil
			},
		},
		{
			Name:  "write",
			Usage: "write with response against a handle",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "handle", Value: "0x0003"},
				cli.StringFlag{Name: "value", Value: "01"},
			},
			Action: func(c *cli.Context) error {
				handle, err := parseHandle(c.String("handle"))
				if err != nil {
					return err
				}
				value, err := parseHexValue(c.String("value"))
				if err != nil {
					return err
				}
				e, dt := newEngine(entry)
				done := make(chan struct{})
				e.Write(demoConn, handle, value, func(conn uint16, handle uint16, err error) {
					if err != nil {
						fmt.Printf("write failed: %v\n", err)
					} else {
						fmt.Printf("write to 0x%04X committed\n", handle)
					}
					close(done)
				})
				dt.drain(e)
				<-done
				return nil
			},
		},
		{
			Name:  "indicate",
			Usage: "send a handle value indication and wait for confirmation",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "handle", Value: "0x0003"},
				cli.StringFlag{Name: "value", Value: "01"},
			},
			Action: func(c *cli.Context) error {
				handle, err := parseHandle(c.String("handle"))
				if err != nil {
					return err
				}
				value, err := parseHexValue(c.String("value"))
				if err != nil {
					return err
				}
				e, dt := newEngine(entry)
				done := make(chan struct{})
				e.Indicate(demoConn, handle, value, func(conn uint16, handle uint16, err error) {
					if err != nil {
						fmt.Printf("indicate failed: %v\n", err)
					} else {
						fmt.Printf("indication to 0x%04X confirmed\n", handle)
					}
					close(done)
				})
				dt.drain(e)
				<-done
				return nil
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		entry.WithError(err).Fatal("gattc-demo failed")
	}
}
