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
	message     string
)

func init() {
	flag.StringVar(&brokerAddr, "addr", "127.0.0.1:61613", "-addr=127.0.0.1:61613")
	flag.StringVar(&destination, "destination", "/queue/demo", "-destination=/queue/demo")
	flag.StringVar(&message, "message", "{\"key\":\"value\"}", "-message=...")
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

	err = session.Send(destination, []byte(message),
		stompclient.Header{Name: stompclient.HeaderReceipt, Value: "pub-1"})
	if err != nil {
		log.Println("send:", err)
		return
	}
	receipt, ok := <-session.Received()
	if !ok {
		log.Println("connection closed before the receipt")
		return
	}
	log.Printf("recv: %s", receipt.Command)

	if err := session.Disconnect(); err != nil {
		log.Println("disconnect:", err)
	}
}
