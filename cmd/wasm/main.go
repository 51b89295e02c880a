//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"syscall/js"

	"github.com/hack-pad/hackpadfs/indexeddb"
	"go.uber.org/zap"

	"github.com/kinship-app/kinship/internal/blob"
	"github.com/kinship-app/kinship/internal/persist"
	"github.com/kinship-app/kinship/internal/store"
	"github.com/kinship-app/kinship/pkg/graphview"
	"github.com/kinship-app/kinship/pkg/suggest"
)

// Version info
const Version = "1.0.0"

// Global state: one service per page, created by open().
var service *persist.Service
var logger *zap.Logger

func main() {
	logger, _ = zap.NewDevelopment()
	if logger == nil {
		logger = zap.NewNop()
	}

	// Register exports
	js.Global().Set("Kinship", js.ValueOf(map[string]interface{}{
		"version": js.FuncOf(getVersion),
		"open":    js.FuncOf(open),
		"flush":   js.FuncOf(flush),
		// Contacts
		"createContact":  js.FuncOf(createContact),
		"getContact":     js.FuncOf(getContact),
		"listContacts":   js.FuncOf(listContacts),
		"searchContacts": js.FuncOf(searchContacts),
		"updateContact":  js.FuncOf(updateContact),
		"deleteContact":  js.FuncOf(deleteContact),
		// Connections
		"createConnection":      js.FuncOf(createConnection),
		"updateConnection":      js.FuncOf(updateConnection),
		"deleteConnection":      js.FuncOf(deleteConnection),
		"connectionExists":      js.FuncOf(connectionExists),
		"connectionsForContact": js.FuncOf(connectionsForContact),
		"uniqueConnections":     js.FuncOf(uniqueConnections),
		// Node positions
		"savePositions":  js.FuncOf(savePositions),
		"getPositions":   js.FuncOf(getPositions),
		"clearPositions": js.FuncOf(clearPositions),
		// Interchange
		"exportSnapshot": js.FuncOf(exportSnapshot),
		"importSnapshot": js.FuncOf(importSnapshot),
		// Views
		"graphView":          js.FuncOf(graphView),
		"suggestConnections": js.FuncOf(suggestConnections),
	}))

	println("[Kinship] WASM Ready v" + Version)
	select {}
}

// getVersion returns the module version
func getVersion(this js.Value, args []js.Value) interface{} {
	return Version
}

// open loads the persisted snapshot from IndexedDB, or creates a fresh
// database when none exists. A load failure is returned to the caller so
// the UI can show a retry affordance; no blank database replaces data.
// Args: [dbName string (optional, default "kinship")]
func open(this js.Value, args []js.Value) interface{} {
	name := "kinship"
	if len(args) > 0 && args[0].String() != "" {
		name = args[0].String()
	}

	fs, err := indexeddb.NewFS(context.Background(), name, indexeddb.Options{})
	if err != nil {
		return errorResult("failed to open browser store: " + err.Error())
	}

	svc, err := persist.Open(blob.NewStore(fs, blob.DefaultName, logger), logger)
	if err != nil {
		return errorResult("failed to open database: " + err.Error())
	}

	service = svc
	return successResult("opened")
}

// flush persists the current snapshot. The page teardown handler calls
// this best-effort; every mutation already flushes on its own.
func flush(this js.Value, args []js.Value) interface{} {
	if service == nil {
		return errorResult("not opened")
	}
	if err := service.Flush(); err != nil {
		return errorResult("flush failed: " + err.Error())
	}
	return successResult("flushed")
}

// =============================================================================
// Contacts
// =============================================================================

// createContact: [name, imageURL, imageBlob, notes]
func createContact(this js.Value, args []js.Value) interface{} {
	if service == nil {
		return errorResult("not opened")
	}
	if len(args) < 4 {
		return errorResult("requires 4 args: name, imageURL, imageBlob, notes")
	}

	c, err := service.CreateContact(args[0].String(), args[1].String(), args[2].String(), args[3].String())
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(c)
}

// getContact: [id] - returns the contact or null
func getContact(this js.Value, args []js.Value) interface{} {
	if service == nil {
		return errorResult("not opened")
	}
	if len(args) < 1 {
		return errorResult("requires 1 arg: id")
	}

	c, err := service.GetContact(args[0].String())
	if err != nil {
		return errorResult(err.Error())
	}
	if c == nil {
		return "null"
	}
	return jsonResult(c)
}

func listContacts(this js.Value, args []js.Value) interface{} {
	if service == nil {
		return errorResult("not opened")
	}

	contacts, err := service.ListContacts()
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(contacts)
}

// searchContacts: [query] - case-insensitive name substring
func searchContacts(this js.Value, args []js.Value) interface{} {
	if service == nil {
		return errorResult("not opened")
	}
	if len(args) < 1 {
		return errorResult("requires 1 arg: query")
	}

	contacts, err := service.SearchContacts(args[0].String())
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(contacts)
}

// updateContact: [contactJSON] - full contact with id
func updateContact(this js.Value, args []js.Value) interface{} {
	if service == nil {
		return errorResult("not opened")
	}
	if len(args) < 1 {
		return errorResult("requires 1 arg: contactJSON")
	}

	var c store.Contact
	if err := json.Unmarshal([]byte(args[0].String()), &c); err != nil {
		return errorResult("invalid contact json: " + err.Error())
	}
	if err := service.UpdateContact(&c); err != nil {
		return errorResult(err.Error())
	}
	return successResult("updated")
}

// deleteContact: [id] - cascades to connections and position
func deleteContact(this js.Value, args []js.Value) interface{} {
	if service == nil {
		return errorResult("not opened")
	}
	if len(args) < 1 {
		return errorResult("requires 1 arg: id")
	}

	if err := service.DeleteContact(args[0].String()); err != nil {
		return errorResult(err.Error())
	}
	return successResult("deleted")
}

// =============================================================================
// Connections
// =============================================================================

// createConnection: [fromID, toID, label]
func createConnection(this js.Value, args []js.Value) interface{} {
	if service == nil {
		return errorResult("not opened")
	}
	if len(args) < 3 {
		return errorResult("requires 3 args: fromID, toID, label")
	}

	conn, err := service.CreateConnection(args[0].String(), args[1].String(), args[2].String())
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(conn)
}

// updateConnection: [aID, bID, label] - relabels both directions
func updateConnection(this js.Value, args []js.Value) interface{} {
	if service == nil {
		return errorResult("not opened")
	}
	if len(args) < 3 {
		return errorResult("requires 3 args: aID, bID, label")
	}

	if err := service.UpdateConnection(args[0].String(), args[1].String(), args[2].String()); err != nil {
		return errorResult(err.Error())
	}
	return successResult("updated")
}

// deleteConnection: [aID, bID] - removes both directions
func deleteConnection(this js.Value, args []js.Value) interface{} {
	if service == nil {
		return errorResult("not opened")
	}
	if len(args) < 2 {
		return errorResult("requires 2 args: aID, bID")
	}

	if err := service.DeleteConnection(args[0].String(), args[1].String()); err != nil {
		return errorResult(err.Error())
	}
	return successResult("deleted")
}

// connectionExists: [aID, bID]
func connectionExists(this js.Value, args []js.Value) interface{} {
	if service == nil {
		return errorResult("not opened")
	}
	if len(args) < 2 {
		return errorResult("requires 2 args: aID, bID")
	}

	exists, err := service.ConnectionExists(args[0].String(), args[1].String())
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(exists)
}

// connectionsForContact: [contactID]
func connectionsForContact(this js.Value, args []js.Value) interface{} {
	if service == nil {
		return errorResult("not opened")
	}
	if len(args) < 1 {
		return errorResult("requires 1 arg: contactID")
	}

	links, err := service.ListConnectionsForContact(args[0].String())
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(links)
}

func uniqueConnections(this js.Value, args []js.Value) interface{} {
	if service == nil {
		return errorResult("not opened")
	}

	conns, err := service.ListUniqueConnections()
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(conns)
}

// =============================================================================
// Node positions
// =============================================================================

// savePositions: [positionsJSON] - array of {contact_id, x, y, fixed}
func savePositions(this js.Value, args []js.Value) interface{} {
	if service == nil {
		return errorResult("not opened")
	}
	if len(args) < 1 {
		return errorResult("requires 1 arg: positionsJSON")
	}

	var positions []*store.NodePosition
	if err := json.Unmarshal([]byte(args[0].String()), &positions); err != nil {
		return errorResult("invalid positions json: " + err.Error())
	}
	if err := service.SavePositions(positions); err != nil {
		return errorResult(err.Error())
	}
	return successResult("saved")
}

func getPositions(this js.Value, args []js.Value) interface{} {
	if service == nil {
		return errorResult("not opened")
	}

	positions, err := service.GetPositions()
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(positions)
}

func clearPositions(this js.Value, args []js.Value) interface{} {
	if service == nil {
		return errorResult("not opened")
	}

	if err := service.ClearPositions(); err != nil {
		return errorResult(err.Error())
	}
	return successResult("cleared")
}

// =============================================================================
// Interchange
// =============================================================================

func exportSnapshot(this js.Value, args []js.Value) interface{} {
	if service == nil {
		return errorResult("not opened")
	}

	data, err := service.ExportJSON()
	if err != nil {
		return errorResult(err.Error())
	}
	return string(data)
}

// importSnapshot: [documentJSON] - returns the structured ImportResult
func importSnapshot(this js.Value, args []js.Value) interface{} {
	if service == nil {
		return errorResult("not opened")
	}
	if len(args) < 1 {
		return errorResult("requires 1 arg: documentJSON")
	}

	res, err := service.Import([]byte(args[0].String()))
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(res)
}

// =============================================================================
// Views
// =============================================================================

// graphView returns the renderable node/edge model with saved positions.
func graphView(this js.Value, args []js.Value) interface{} {
	if service == nil {
		return errorResult("not opened")
	}

	contacts, err := service.ListContacts()
	if err != nil {
		return errorResult(err.Error())
	}
	conns, err := service.ListUniqueConnections()
	if err != nil {
		return errorResult(err.Error())
	}
	positions, err := service.GetPositions()
	if err != nil {
		return errorResult(err.Error())
	}

	gcontacts := make([]graphview.Contact, 0, len(contacts))
	for _, c := range contacts {
		gcontacts = append(gcontacts, graphview.Contact{ID: c.ID, Name: c.Name, ImageURL: c.ImageURL})
	}
	glinks := make([]graphview.Link, 0, len(conns))
	for _, conn := range conns {
		glinks = append(glinks, graphview.Link{A: conn.FromContactID, B: conn.ToContactID, Label: conn.Label})
	}
	gpositions := make([]graphview.Position, 0, len(positions))
	for _, p := range positions {
		gpositions = append(gpositions, graphview.Position{ContactID: p.ContactID, X: p.X, Y: p.Y, Fixed: p.Fixed})
	}

	return jsonResult(graphview.Build(gcontacts, glinks, gpositions))
}

// suggestConnections scans contact notes for mentions of other contacts
// and proposes connections that do not exist yet.
func suggestConnections(this js.Value, args []js.Value) interface{} {
	if service == nil {
		return errorResult("not opened")
	}

	contacts, err := service.ListContacts()
	if err != nil {
		return errorResult(err.Error())
	}

	people := make([]suggest.Person, 0, len(contacts))
	for _, c := range contacts {
		people = append(people, suggest.Person{ID: c.ID, Name: c.Name, Notes: c.Notes})
	}

	suggestions := suggest.Suggest(people, func(aID, bID string) bool {
		exists, err := service.ConnectionExists(aID, bID)
		return err == nil && exists
	})
	return jsonResult(suggestions)
}

// =============================================================================
// Helpers
// =============================================================================

// Helper: Create error result
func errorResult(msg string) interface{} {
	result := map[string]interface{}{
		"error": msg,
	}
	jsonBytes, _ := json.Marshal(result)
	return string(jsonBytes)
}

// Helper: Create success result
func successResult(msg string) interface{} {
	result := map[string]interface{}{
		"success": msg,
	}
	jsonBytes, _ := json.Marshal(result)
	return string(jsonBytes)
}

// Helper: Marshal a value as the result
func jsonResult(v interface{}) interface{} {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return errorResult(err.Error())
	}
	return string(jsonBytes)
}
