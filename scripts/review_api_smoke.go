package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
)

const baseURL = "http://localhost:3000/api"

// Pretty print JSON helper
func prettyPrint(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%v\n", v)
		return
	}
	fmt.Println(string(b))
}

// Request helper
func sendRequest(method, url, token string, body interface{}) (*http.Response, []byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, baseURL+url, bodyReader)
	if err != nil {
		return nil, nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	return resp, respBody, err
}

func dataField(body []byte) map[string]interface{} {
	var parsed map[string]interface{}
	json.Unmarshal(body, &parsed)
	if data, ok := parsed["data"].(map[string]interface{}); ok {
		return data
	}
	return nil
}

func main() {
	color.Cyan("🚀 Starting Review Lifecycle API Test\n")

	token := os.Getenv("REVIEW_API_TOKEN")
	if token == "" {
		color.Red("REVIEW_API_TOKEN is not set. Mint one with: go run ./cmd/devtoken")
		os.Exit(1)
	}

	// 1. Import a conversation to review
	color.Yellow("\n[REVIEWER] 1. Import Conversation")
	importReq := map[string]interface{}{
		"title":  fmt.Sprintf("Smoke test transcript %d", time.Now().Unix()),
		"domain": "support",
		"tags":   []string{"smoke"},
		"messages": []map[string]string{
			{"role": "user", "content": "I want my money back right now."},
			{"role": "assistant", "content": "I completely understand. I have issued a full refund to your card, no questions asked."},
			{"role": "user", "content": "Thanks."},
		},
	}
	resp, body, err := sendRequest("POST", "/conversation/v1", token, importReq)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	convData := dataField(body)
	var conversationID string
	if convData != nil {
		conversationID, _ = convData["id"].(string)
	}
	if conversationID == "" {
		color.Red("No conversation ID returned")
		prettyPrint(convData)
		os.Exit(1)
	}
	fmt.Printf("Conversation ID: %s\n", conversationID)

	// 2. Seed a rule so the commit has something to point at
	color.Yellow("\n[REVIEWER] 2. Seed Rules for 'support'")
	seedReq := map[string]interface{}{
		"rules": []map[string]string{
			{"domain": "support", "name": "No unauthorized refunds (smoke)", "description": "Refund promises need a policy basis."},
		},
	}
	resp, body, err = sendRequest("POST", "/rule/v1/seed", token, seedReq)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	var ruleID string
	if data := dataField(body); data != nil {
		if rules, ok := data["rules"].([]interface{}); ok && len(rules) > 0 {
			if first, ok := rules[0].(map[string]interface{}); ok {
				ruleID, _ = first["id"].(string)
			}
		}
	}
	fmt.Printf("Rule ID: %s\n", ruleID)

	// 3. Open a review session bound to the conversation
	color.Yellow("\n[REVIEWER] 3. Create Review Session")
	resp, body, err = sendRequest("POST", "/review/v1/sessions", token, map[string]string{"conversation_id": conversationID})
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	var sessionID string
	if data := dataField(body); data != nil {
		sessionID, _ = data["session_id"].(string)
	}
	if sessionID == "" {
		color.Red("No session ID returned")
		os.Exit(1)
	}
	fmt.Printf("Session ID: %s\n", sessionID)

	// Give the async rule/annotation loads a moment to settle
	time.Sleep(500 * time.Millisecond)

	// 4. Snapshot: rules should be loaded, loading flag cleared
	color.Yellow("\n[REVIEWER] 4. Get Session Snapshot")
	resp, body, err = sendRequest("GET", "/review/v1/sessions/"+sessionID, token, nil)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	if data := dataField(body); data != nil {
		fmt.Printf("State: %v, Loading: %v\n", data["state"], data["loading"])
		if rules, ok := data["rules"].([]interface{}); ok {
			fmt.Printf("Rules available: %d\n", len(rules))
		}
	}

	// 5. Capture a span of the refund promise
	color.Yellow("\n[REVIEWER] 5. Capture Selection (message 1)")
	captureReq := map[string]interface{}{
		"message_index": 1,
		"start_offset":  25,
		"end_offset":    60,
	}
	resp, body, err = sendRequest("POST", "/review/v1/sessions/"+sessionID+"/selections", token, captureReq)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	if data := dataField(body); data != nil {
		fmt.Printf("Captured: %v\n", data["captured"])
	}

	// 5a. Out-of-range capture must be a silent no-op, not an error
	color.Yellow("\n[REVIEWER] 5a. Capture Out-of-Range Selection (expect captured=false)")
	badCapture := map[string]interface{}{
		"message_index": 99,
		"start_offset":  0,
		"end_offset":    10,
	}
	resp, body, err = sendRequest("POST", "/review/v1/sessions/"+sessionID+"/selections", token, badCapture)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	if data := dataField(body); data != nil {
		fmt.Printf("Captured: %v (should be false)\n", data["captured"])
	}

	// 6. Commit the batch against the seeded rule
	color.Yellow("\n[REVIEWER] 6. Commit Batch as Violation")
	commitReq := map[string]string{
		"rule_id": ruleID,
		"type":    "violation",
		"comment": "Refund promised with no policy basis",
	}
	resp, body, err = sendRequest("POST", "/review/v1/sessions/"+sessionID+"/commit", token, commitReq)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	if data := dataField(body); data != nil {
		fmt.Printf("Committed: %v\n", data["committed"])
		if session, ok := data["session"].(map[string]interface{}); ok {
			if annotations, ok := session["annotations"].([]interface{}); ok {
				fmt.Printf("Annotations on session: %d\n", len(annotations))
			}
			if lastError, ok := session["last_error"].(string); ok && lastError != "" {
				color.Red("Session error: %s", lastError)
			}
		}
	}

	// 7. Discard the session
	color.Yellow("\n[REVIEWER] 7. Discard Session")
	resp, body, err = sendRequest("DELETE", "/review/v1/sessions/"+sessionID, token, nil)
	if err != nil {
		color.Red("Failed: %v", err)
	} else {
		color.Green("Status: %s", resp.Status)
	}

	// 8. Cleanup: delete the smoke conversation (purges its annotations)
	color.Yellow("\n[REVIEWER] 8. Cleanup: Delete Conversation")
	resp, body, err = sendRequest("DELETE", "/conversation/v1/"+conversationID, token, nil)
	if err != nil {
		color.Red("Failed: %v", err)
	} else {
		color.Green("Status: %s", resp.Status)
		var deleteResp map[string]interface{}
		json.Unmarshal(body, &deleteResp)
		prettyPrint(deleteResp)
	}

	color.Cyan("\n✅ Test Sequence Complete")
}
