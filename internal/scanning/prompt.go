package scanning

import (
	"fmt"
	"strings"
)

// Categories is the closed set of spending categories the classifier chooses from
var Categories = []string{
	"Utilities",
	"Gas",
	"Dining",
	"Groceries",
	"Transportation",
	"Pet Care",
	"Entertainment",
	"Health & Wellness",
	"Apparel",
	"Office Supplies",
	"Education",
	"Personal Care",
	"Travel",
	"Misc",
}

// ocrPrompt asks a vision model for a plain transcription of the receipt
const ocrPrompt = `Transcribe every piece of text visible in this receipt image, top to bottom, one printed line per output line.
Keep prices, quantities and totals exactly as printed.
Do not summarize, translate or add commentary. If the image contains no readable text, return an empty response.`

// ClassificationPrompt builds the instruction sent to the language model for one receipt's OCR text.
// The model is asked for exactly two labeled lines; ParseCompletion must still treat the answer defensively.
func ClassificationPrompt(text string) string {
	var b strings.Builder
	b.WriteString("You are looking at the raw text of a receipt extracted using OCR. ")
	b.WriteString("Output the following components and nothing more. ")
	b.WriteString("Find the total price in the raw text and output it on the first line as 'TOTAL_PRICE: $<total price>'. ")
	fmt.Fprintf(&b, "Choose a category from this list: [%s] and output it on the final line as 'CATEGORY: <category>'. ",
		strings.Join(Categories, ", "))
	b.WriteString("Here is the text: ")
	b.WriteString(text)
	return b.String()
}
