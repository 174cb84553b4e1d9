package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "dsa":
		handleDSA(args)
	case "link":
		handleLink(args)
	case "dashboard":
		showDashboard()
	case "refer":
		recordReferral(args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleDSA(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: referraldesk dsa <list|create|delete>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "list":
		listDSAs()
	case "create":
		createDSA(args[1:])
	case "delete":
		deleteDSA(args[1:])
	default:
		fmt.Printf("unknown dsa command: %s\n", subCmd)
	}
}

func handleLink(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: referraldesk link <list|create|delete>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "list":
		listLinks()
	case "create":
		createLink(args[1:])
	case "delete":
		deleteLink(args[1:])
	default:
		fmt.Printf("unknown link command: %s\n", subCmd)
	}
}

// DSA commands
func listDSAs() {
	resp, err := http.Get(getAPIURL() + "/api/dsas")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result struct {
		DSAs []map[string]interface{} `json:"dsas"`
	}
	json.NewDecoder(resp.Body).Decode(&result)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tACTIVE LINKS\tSIGNUPS")
	for _, d := range result.DSAs {
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\n", d["id"], d["name"], d["status"], d["activeLinks"], d["signups"])
	}
	w.Flush()
}

func createDSA(args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	name := fs.String("name", "", "agent name")
	email := fs.String("email", "", "agent email")
	status := fs.String("status", "Active", "Active or Suspended")

	fs.Parse(args)

	if *name == "" || *email == "" {
		fmt.Println("Error: name and email are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{"name": *name, "email": *email, "status": *status}
	data, _ := json.Marshal(payload)
	resp, err := http.Post(getAPIURL()+"/api/dsas", "application/json", bytes.NewReader(data))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == 201 {
		fmt.Printf("✓ DSA created: %v\n", result["id"])
	} else {
		fmt.Printf("✗ Create failed: %v\n", result["error"])
	}
}

func deleteDSA(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: referraldesk dsa delete <dsa-id>")
		return
	}
	doDelete("/api/dsas/"+args[0], "DSA")
}

// Link commands
func listLinks() {
	resp, err := http.Get(getAPIURL() + "/api/links")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result struct {
		Links []map[string]interface{} `json:"links"`
	}
	json.NewDecoder(resp.Body).Decode(&result)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCODE\tDSA\tPRODUCT\tCLICKS\tSIGNUPS\tRATE")
	for _, l := range result.Links {
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\t%v\t%v\n",
			l["id"], l["code"], l["dsaName"], l["productName"], l["clicks"], l["signups"], l["conversionRate"])
	}
	w.Flush()
}

func createLink(args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	dsaID := fs.String("dsa", "", "owning DSA id")
	productID := fs.String("product", "", "product id")
	code := fs.String("code", "", "referral code")

	fs.Parse(args)

	if *dsaID == "" || *productID == "" || *code == "" {
		fmt.Println("Error: dsa, product, and code are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{"dsaId": *dsaID, "productId": *productID, "code": *code}
	data, _ := json.Marshal(payload)
	resp, err := http.Post(getAPIURL()+"/api/links", "application/json", bytes.NewReader(data))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == 201 {
		fmt.Printf("✓ Link created: %v -> %v\n", result["code"], result["link"])
	} else {
		fmt.Printf("✗ Create failed: %v\n", result["error"])
	}
}

func deleteLink(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: referraldesk link delete <link-id>")
		return
	}
	doDelete("/api/links/"+args[0], "Link")
}

// Dashboard command
func showDashboard() {
	resp, err := http.Get(getAPIURL() + "/api/dashboard/summary")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var sum map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&sum)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DSAS\tLINKS\tCLICKS\tSIGNUPS\tCONVERSION")
	fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\n",
		sum["totalDsas"], sum["totalLinks"], sum["totalClicks"], sum["totalSignups"], sum["conversionRate"])
	w.Flush()

	topResp, err := http.Get(getAPIURL() + "/api/dashboard/top")
	if err != nil {
		return
	}
	defer topResp.Body.Close()

	var top struct {
		DSAs []map[string]interface{} `json:"dsas"`
	}
	json.NewDecoder(topResp.Body).Decode(&top)

	fmt.Println("\nTop performers:")
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIGNUPS\tACTIVE LINKS")
	for _, d := range top.DSAs {
		fmt.Fprintf(tw, "%v\t%v\t%v\n", d["name"], d["signups"], d["activeLinks"])
	}
	tw.Flush()
}

// Refer command simulates a signup against a code
func recordReferral(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: referraldesk refer <code>")
		return
	}

	resp, err := http.Post(getAPIURL()+"/api/refer/"+args[0]+"/signup", "application/json", nil)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == 200 {
		fmt.Printf("✓ Signup recorded: %v signups, rate %v\n", result["signups"], result["conversionRate"])
	} else {
		fmt.Printf("✗ Signup failed: %v\n", result["error"])
	}
}

// Helper functions
func doDelete(path, kind string) {
	req, _ := http.NewRequest("DELETE", getAPIURL()+path, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == 204 {
		fmt.Printf("✓ %s deleted\n", kind)
		return
	}
	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	fmt.Printf("✗ Delete failed: %v\n", result["error"])
}

func getAPIURL() string {
	if url := os.Getenv("REFERRALDESK_API"); url != "" {
		return url
	}
	return "http://localhost:8080"
}

func printUsage() {
	fmt.Print(`ReferralDesk CLI

Usage:
  referraldesk <command> [options]

Commands:
  dsa        Agent registry (list, create, delete)
  link       Referral links (list, create, delete)
  dashboard  Program summary and top performers
  refer      Record a signup against a referral code
  help       Show this help message

Environment Variables:
  REFERRALDESK_API    API endpoint (default: http://localhost:8080)

Examples:
  referraldesk dsa create -name "Alice Johnson" -email alice@example.com
  referraldesk link create -dsa <dsa-id> -product prod1 -code ALICE20
  referraldesk link list
  referraldesk dashboard
  referraldesk refer ALICE20
`)
}
