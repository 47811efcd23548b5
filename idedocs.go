// Package idedocs ingests documentation for software tools ("IDEs"), turns it
// into retrievable knowledge, and answers questions grounded in it.
//
// Ingestion crawls a tool's documentation site, splits pages into bounded
// chunks, embeds them, classifies the tool's preferred prompt format and
// assembles a manifest. At query time the most similar chunks are retrieved
// and handed to a language model together with the question.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., sqlite/, gemini/, goquery/).
package idedocs
