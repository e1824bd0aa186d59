package main

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

func main() {
	api := os.Getenv("API_BASE")
	if api == "" {
		api = "http://localhost:8080"
	}
	api = strings.TrimSuffix(api, "/")

	site := ""
	if len(os.Args) > 1 {
		site = strings.TrimSpace(os.Args[1])
	} else {
		reader := bufio.NewReader(os.Stdin)
		fmt.Print("Site ID to check (empty for the default site, \"all\" for every site): ")
		raw, _ := reader.ReadString('\n')
		site = strings.TrimSpace(raw)
	}

	target := api + "/"
	switch site {
	case "":
	case "all":
		target = api + "/check"
	default:
		target = api + "/check/" + url.PathEscape(site)
	}

	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		fmt.Println("Invalid API_BASE:", err)
		os.Exit(1)
	}
	if user := os.Getenv("API_USER"); user != "" {
		req.SetBasicAuth(user, os.Getenv("API_PASS"))
	}

	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Println("Error contacting API:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		fmt.Print(string(body))
		return
	}
	fmt.Println("API returned status:", resp.Status)
	os.Exit(1)
}
