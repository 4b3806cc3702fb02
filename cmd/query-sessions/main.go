// Inspection tool for recorded conversation sessions. Reads the store
// written by scout without going through the application, for debugging
// transcripts and intent snapshots.
//
// Usage:
//
//	query-sessions [db-path]              list recent sessions
//	query-sessions [db-path] [session]    dump one transcript (id prefix ok)
package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

func main() {
	dbPath := filepath.Join(".scout", "sessions.db")
	if len(os.Args) > 1 {
		dbPath = os.Args[1]
	}

	if _, err := os.Stat(dbPath); err != nil {
		fmt.Printf("No session database at %s\n", dbPath)
		os.Exit(1)
	}

	if len(os.Args) > 2 {
		dumpSession(dbPath, os.Args[2])
		return
	}
	listSessions(dbPath, 20)
}

func listSessions(dbPath string, limit int) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		fmt.Printf("Error opening DB: %v\n", err)
		return
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT s.id, s.created_at, s.original_request, COUNT(t.id)
		FROM sessions s
		LEFT JOIN session_turns t ON t.session_id = s.id
		GROUP BY s.id
		ORDER BY s.created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		fmt.Printf("Error querying sessions: %v\n", err)
		return
	}
	defer rows.Close()

	fmt.Println("Recent sessions:")
	fmt.Println("─────────────────────────────────────────────────────────────")
	n := 0
	for rows.Next() {
		var id, createdAt, request string
		var turns int
		if err := rows.Scan(&id, &createdAt, &request, &turns); err != nil {
			fmt.Printf("Scan error: %v\n", err)
			continue
		}
		n++
		if len(request) > 70 {
			request = request[:70] + "..."
		}
		fmt.Printf("%d. %s  %s  (%d rows)\n   %s\n", n, shortID(id), createdAt, turns, request)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&count)
	fmt.Printf("\nTotal sessions: %d\n", count)
}

func dumpSession(dbPath, sessionID string) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		fmt.Printf("Error opening DB: %v\n", err)
		return
	}
	defer db.Close()

	var id, createdAt, request string
	err = db.QueryRow(`
		SELECT id, created_at, original_request
		FROM sessions
		WHERE id = ? OR id LIKE ?
		ORDER BY created_at DESC
		LIMIT 1`, sessionID, sessionID+"%").Scan(&id, &createdAt, &request)
	if err != nil {
		fmt.Printf("No session matching %q: %v\n", sessionID, err)
		return
	}

	fmt.Printf("Session %s (%s)\n", id, createdAt)
	fmt.Printf("Original request: %s\n", request)
	fmt.Println("─────────────────────────────────────────────────────────────")

	rows, err := db.Query(`
		SELECT turn_number, role, content, intent_json
		FROM session_turns
		WHERE session_id = ?
		ORDER BY turn_number, role DESC`, id)
	if err != nil {
		fmt.Printf("Error querying turns: %v\n", err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var turn int
		var role, content, intentJSON string
		if err := rows.Scan(&turn, &role, &content, &intentJSON); err != nil {
			fmt.Printf("Scan error: %v\n", err)
			continue
		}
		if len(content) > 300 {
			content = content[:300] + "..."
		}
		fmt.Printf("[%d] %s: %s\n", turn, role, content)
		if intentJSON != "" {
			if len(intentJSON) > 200 {
				intentJSON = intentJSON[:200] + "..."
			}
			fmt.Printf("    intent: %s\n", intentJSON)
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
