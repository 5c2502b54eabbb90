package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
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
	data, _ := parsed["data"].(map[string]interface{})
	return data
}

func main() {
	color.Cyan("🚀 Book Chat API smoke test\n")

	email := fmt.Sprintf("smoke-%d@example.com", time.Now().Unix())

	// 1. Register
	color.Yellow("\n1. Register")
	resp, body, err := sendRequest("POST", "/auth/register", "", map[string]interface{}{
		"email":     email,
		"password":  "supersecret123",
		"full_name": "Smoke Tester",
	})
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)

	// 2. Login
	color.Yellow("\n2. Login")
	resp, body, err = sendRequest("POST", "/auth/login", "", map[string]interface{}{
		"email":    email,
		"password": "supersecret123",
	})
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	token, _ := dataField(body)["access_token"].(string)
	if token == "" {
		color.Red("No access token in login response")
		os.Exit(1)
	}

	// 3. Upload a book
	color.Yellow("\n3. Upload book")
	content := strings.Repeat("The whale surfaced at dawn. The crew watched in silence. ", 200)
	resp, body, err = sendRequest("POST", "/book/v1", token, map[string]interface{}{
		"title":   "Smoke Test Voyage",
		"author":  "S. Tester",
		"content": content,
	})
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	bookID, _ := dataField(body)["id"].(float64)
	if bookID == 0 {
		color.Red("No book id in upload response")
		os.Exit(1)
	}
	fmt.Printf("Book ID: %.0f\n", bookID)

	// 4. Poll status until terminal
	color.Yellow("\n4. Poll processing status")
	var status string
	for i := 0; i < 60; i++ {
		time.Sleep(2 * time.Second)
		_, body, err = sendRequest("GET", fmt.Sprintf("/book/v1/%.0f/status", bookID), token, nil)
		if err != nil {
			color.Red("Failed: %v", err)
			os.Exit(1)
		}
		data := dataField(body)
		status, _ = data["status"].(string)
		processed, _ := data["processed"].(float64)
		total, _ := data["total"].(float64)
		fmt.Printf("  status=%s %0.f/%0.f\n", status, processed, total)
		if status == "completed" || status == "error" {
			break
		}
	}
	if status != "completed" {
		color.Red("Book never completed (status=%s)", status)
		os.Exit(1)
	}
	color.Green("Book processed")

	// 5. Semantic query
	color.Yellow("\n5. Query book")
	resp, body, err = sendRequest("POST", fmt.Sprintf("/book/v1/%.0f/query", bookID), token, map[string]interface{}{
		"query": "What happened at dawn?",
		"top_k": 3,
	})
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	var queryResp map[string]interface{}
	json.Unmarshal(body, &queryResp)
	prettyPrint(queryResp)

	// 6. Chat session
	color.Yellow("\n6. Create chat session")
	resp, body, err = sendRequest("POST", "/chat/v1/session", token, map[string]interface{}{
		"book_id": bookID,
		"title":   "Smoke chat",
	})
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	sessionID, _ := dataField(body)["id"].(string)

	// 7. Send the same question twice; the second reply should be cached.
	for i := 1; i <= 2; i++ {
		color.Yellow("\n7.%d Send chat", i)
		resp, body, err = sendRequest("POST", "/chat/v1/send", token, map[string]interface{}{
			"chat_session_id": sessionID,
			"chat":            "What did the crew see?",
		})
		if err != nil {
			color.Red("Failed: %v", err)
			os.Exit(1)
		}
		color.Green("Status: %s", resp.Status)
		data := dataField(body)
		if reply, ok := data["reply"].(map[string]interface{}); ok {
			fmt.Printf("  cached=%v\n", reply["cached"])
			if text, ok := reply["chat"].(string); ok && len(text) > 160 {
				fmt.Printf("  reply: %s...\n", text[:160])
			} else {
				fmt.Printf("  reply: %v\n", reply["chat"])
			}
		}
	}

	color.Cyan("\n✅ Smoke test finished")
}
