package openapi

func str() map[string]interface{} { return map[string]interface{}{"type": "string"} }

func nullable(schema map[string]interface{}) map[string]interface{} {
	schema["nullable"] = true
	return schema
}

func id() map[string]interface{} {
	return map[string]interface{}{"type": "integer", "format": "int64"}
}

func dateTime() map[string]interface{} {
	return map[string]interface{}{"type": "string", "format": "date-time"}
}

func ref(name string) map[string]interface{} {
	return map[string]interface{}{"$ref": "#/components/schemas/" + name}
}

func arrayOf(name string) map[string]interface{} {
	return map[string]interface{}{"type": "array", "items": ref(name)}
}

func object(required []string, props map[string]interface{}) map[string]interface{} {
	s := map[string]interface{}{"type": "object", "properties": props}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// pageOf builds the {items,page,pageSize,total} envelope for a list endpoint.
func pageOf(item string) map[string]interface{} {
	return object([]string{"items", "page", "pageSize", "total"}, map[string]interface{}{
		"items":    arrayOf(item),
		"page":     map[string]interface{}{"type": "integer", "minimum": 1},
		"pageSize": map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 100},
		"total":    map[string]interface{}{"type": "integer", "minimum": 0},
	})
}

func buildComponentSchemas() map[string]interface{} {
	schemas := map[string]interface{}{
		"Error": object([]string{"error"}, map[string]interface{}{"error": str()}),
		"Health": object([]string{"ok", "mode", "timestamp"}, map[string]interface{}{
			"ok":        map[string]interface{}{"type": "boolean"},
			"mode":      map[string]interface{}{"type": "string", "enum": []string{"shallow", "deep"}},
			"timestamp": dateTime(),
			"db": object(nil, map[string]interface{}{
				"status":     map[string]interface{}{"type": "string", "enum": []string{"up", "down"}},
				"durationMs": map[string]interface{}{"type": "number"},
				"reason": map[string]interface{}{
					"type": "string",
					"enum": []string{"missing_config", "no_token", "aborted", "query_failed"},
				},
			}),
		}),

		"Family": object([]string{"family_id", "family_name", "created_at", "updated_at"}, map[string]interface{}{
			"family_id":   id(),
			"family_name": str(),
			"notes":       nullable(str()),
			"created_at":  dateTime(),
			"updated_at":  dateTime(),
		}),
		"FamilyInput": object([]string{"family_name"}, map[string]interface{}{
			"family_name": str(),
			"notes":       nullable(str()),
		}),
		"FamilyPatch": object(nil, map[string]interface{}{
			"family_name": str(),
			"notes":       nullable(str()),
		}),
		"FamilyDetail": object([]string{"family", "patients", "contacts"}, map[string]interface{}{
			"family":   ref("Family"),
			"patients": arrayOf("Patient"),
			"contacts": arrayOf("Contact"),
		}),

		"Patient": object([]string{"patient_id", "family_id", "first_name", "last_name", "created_at", "updated_at"}, map[string]interface{}{
			"patient_id":    id(),
			"family_id":     id(),
			"first_name":    str(),
			"last_name":     str(),
			"date_of_birth": nullable(map[string]interface{}{"type": "string", "format": "date"}),
			"notes":         nullable(str()),
			"created_at":    dateTime(),
			"updated_at":    dateTime(),
		}),
		"PatientInput": object([]string{"family_id", "first_name", "last_name"}, map[string]interface{}{
			"family_id":     id(),
			"first_name":    str(),
			"last_name":     str(),
			"date_of_birth": nullable(map[string]interface{}{"type": "string", "format": "date"}),
			"notes":         nullable(str()),
		}),
		"PatientPatch": object(nil, map[string]interface{}{
			"family_id":     id(),
			"first_name":    str(),
			"last_name":     str(),
			"date_of_birth": nullable(map[string]interface{}{"type": "string", "format": "date"}),
			"notes":         nullable(str()),
		}),
		"PatientDetail": object([]string{"patient", "contacts", "memories", "agenda", "reminders"}, map[string]interface{}{
			"patient": map[string]interface{}{
				"allOf": []interface{}{
					ref("Patient"),
					object([]string{"family_name"}, map[string]interface{}{"family_name": str()}),
				},
			},
			"contacts":  arrayOf("Contact"),
			"memories":  arrayOf("Memory"),
			"agenda":    arrayOf("AgendaItem"),
			"reminders": arrayOf("Reminder"),
		}),

		"Contact": object([]string{"contact_id", "family_id", "display_name", "created_at", "updated_at"}, map[string]interface{}{
			"contact_id":   id(),
			"family_id":    id(),
			"patient_id":   nullable(id()),
			"relationship": nullable(str()),
			"display_name": str(),
			"email":        nullable(map[string]interface{}{"type": "string", "format": "email"}),
			"phone":        nullable(str()),
			"created_at":   dateTime(),
			"updated_at":   dateTime(),
		}),
		"ContactInput": object([]string{"family_id", "display_name"}, map[string]interface{}{
			"family_id":    id(),
			"patient_id":   nullable(id()),
			"relationship": nullable(str()),
			"display_name": str(),
			"email":        nullable(map[string]interface{}{"type": "string", "format": "email"}),
			"phone":        nullable(str()),
		}),

		"Memory": object([]string{"memory_id", "patient_id", "created_at", "updated_at"}, map[string]interface{}{
			"memory_id":    id(),
			"patient_id":   id(),
			"memory_type":  nullable(str()),
			"title":        nullable(str()),
			"content_text": nullable(str()),
			"media_url":    nullable(map[string]interface{}{"type": "string", "format": "uri"}),
			"tags":         nullable(str()),
			"created_at":   dateTime(),
			"updated_at":   dateTime(),
		}),
		"MemoryInput": object(nil, map[string]interface{}{
			"memory_type":  str(),
			"title":        str(),
			"content_text": str(),
			"media_url":    map[string]interface{}{"type": "string", "format": "uri"},
			"tags":         str(),
		}),

		"AgendaItem": object([]string{"agenda_id", "patient_id", "title", "start_time_utc"}, map[string]interface{}{
			"agenda_id":      id(),
			"patient_id":     id(),
			"title":          str(),
			"details":        nullable(str()),
			"start_time_utc": dateTime(),
			"end_time_utc":   nullable(dateTime()),
		}),
		"AgendaInput": object([]string{"title", "start_time_utc"}, map[string]interface{}{
			"title":          str(),
			"details":        str(),
			"start_time_utc": dateTime(),
			"end_time_utc":   dateTime(),
		}),

		"Reminder": object([]string{"reminder_id", "patient_id", "title", "remind_at_utc"}, map[string]interface{}{
			"reminder_id":   id(),
			"patient_id":    id(),
			"title":         str(),
			"message":       nullable(str()),
			"remind_at_utc": dateTime(),
		}),
		"ReminderInput": object([]string{"title", "remind_at_utc"}, map[string]interface{}{
			"title":         str(),
			"message":       str(),
			"remind_at_utc": dateTime(),
		}),
	}

	for _, item := range []string{"Family", "Patient", "Contact", "Memory", "AgendaItem", "Reminder"} {
		name := item + "Page"
		if item == "AgendaItem" {
			name = "AgendaPage"
		}
		schemas[name] = pageOf(item)
	}
	return schemas
}
