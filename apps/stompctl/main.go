package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/woutdenolf/coilmq/clients/manageclient"
)

var manageAddr string

func init() {
	flag.StringVar(&manageAddr, "addr", "127.0.0.1:61680", "-addr=127.0.0.1:61680")
	flag.Parse()
}

func usage() {
	fmt.Println("usage: stompctl [-addr=host:port] health|queues|topics|connections|metrics")
	os.Exit(2)
}

func main() {
	if flag.NArg() != 1 {
		usage()
	}

	c, err := manageclient.NewManageClient(manageAddr)
	if err != nil {
		log.Fatal(err)
	}

	switch flag.Arg(0) {
	case "health":
		if err := c.Health(); err != nil {
			log.Fatal(err)
		}
		fmt.Println("ok")
	case "queues":
		queues, err := c.Queues()
		if err != nil {
			log.Fatal(err)
		}
		for _, q := range queues {
			fmt.Printf("%s pending=%d subscribers=%d in_flight=%d\n",
				q.Destination, q.PendingSize, q.Subscribers, q.InFlight)
		}
	case "topics":
		topics, err := c.Topics()
		if err != nil {
			log.Fatal(err)
		}
		for _, topic := range topics {
			fmt.Printf("%s subscribers=%d\n", topic.Destination, topic.Subscribers)
		}
	case "connections":
		n, err := c.Connections()
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(n)
	case "metrics":
		text, err := c.Metrics()
		if err != nil {
			log.Fatal(err)
		}
		fmt.Print(text)
	default:
		usage()
	}
}
