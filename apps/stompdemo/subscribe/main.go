package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/woutdenolf/coilmq/clients/stompclient"
)

var (
	brokerAddr  string
	destination string
	ackMode     string
)

func init() {
	flag.StringVar(&brokerAddr, "addr", "127.0.0.1:61613", "-addr=127.0.0.1:61613")
	flag.StringVar(&destination, "destination", "/queue/demo", "-destination=/queue/demo")
	flag.StringVar(&ackMode, "ack", stompclient.AckAuto, "-ack=auto|client")
	flag.Parse()
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log.Printf("connecting to %s", brokerAddr)
	session, err := stompclient.NewClient(brokerAddr).Connect(ctx, stompclient.Option{})
	if err != nil {
		log.Fatal("connect:", err)
	}
	defer session.Close()

	if err := session.Subscribe(destination, ackMode); err != nil {
		log.Fatal("subscribe:", err)
	}
	log.Printf("subscribed to %s, waiting for messages", destination)

	for f := range session.Received() {
		switch f.Command {
		case stompclient.CmdMessage:
			messageId, _ := f.Header(stompclient.HeaderMessageId)
			log.Printf("recv %s: %s", messageId, f.Body)
			if ackMode == stompclient.AckClient {
				if err := session.Ack(messageId); err != nil {
					log.Println("ack:", err)
					return
				}
			}
		case stompclient.CmdError:
			msg, _ := f.Header(stompclient.HeaderMessage)
			log.Println("broker error:", msg)
		default:
			log.Println("recv:", f.Command)
		}
	}
	log.Println("connection closed")
}
