package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

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
func sendRequest(method, url string, body interface{}) (*http.Response, []byte, error) {
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

	client := &http.Client{} // Pipeline runs can take minutes, no timeout
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	return resp, respBody, err
}

func runQuery(query string, sessionId string) string {
	color.Cyan("\n━━━ Query: %s", query)

	payload := map[string]interface{}{
		"query": query,
	}
	if sessionId != "" {
		payload["session_id"] = sessionId
	}

	resp, body, err := sendRequest(http.MethodPost, "/query/v1", payload)
	if err != nil {
		color.Red("Request failed: %v", err)
		os.Exit(1)
	}

	var envelope struct {
		Message string `json:"message"`
		Data    struct {
			SessionId        string `json:"session_id"`
			QueryId          string `json:"query_id"`
			Text             string `json:"text"`
			VisualizationUrl string `json:"visualization_url"`
			ImageUrl         string `json:"image_url"`
			Status           string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		color.Red("Unexpected response (%d): %s", resp.StatusCode, string(body))
		os.Exit(1)
	}

	switch envelope.Data.Status {
	case "completed":
		color.Green("Status: %s", envelope.Data.Status)
	case "partial":
		color.Yellow("Status: %s", envelope.Data.Status)
	default:
		color.Red("Status: %s", envelope.Data.Status)
	}
	prettyPrint(envelope.Data)

	return envelope.Data.SessionId
}

func main() {
	color.White("=== Financial Pipeline Simulation ===")

	// Fresh session
	sessionId := runQuery("¿Cuál es la tendencia del dólar en Argentina?", "")

	// Follow-up in the same session
	runQuery("¿Y cómo se compara con la inflación de este año?", sessionId)

	// Repeat of the first question in a new session: intention and
	// retrieval should come back from cache, visible in the session view.
	runQuery("¿Cuál es la tendencia del dólar en Argentina?", "")

	color.Cyan("\n━━━ Session view")
	resp, body, err := sendRequest(http.MethodGet, "/query/v1/session/"+sessionId, nil)
	if err != nil {
		color.Red("Request failed: %v", err)
		os.Exit(1)
	}
	if resp.StatusCode != http.StatusOK {
		color.Red("Session fetch failed (%d): %s", resp.StatusCode, string(body))
		os.Exit(1)
	}

	var sessionView map[string]interface{}
	_ = json.Unmarshal(body, &sessionView)
	prettyPrint(sessionView)

	color.Green("\n✅ Simulation finished")
}
