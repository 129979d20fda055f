package extraction

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// billScanPrompt is the shared prompt used by all LLM providers for
// extracting a structured bill from a document image.
const billScanPrompt = `You are analyzing a medical bill, medical receipt, or itemized hospital statement. Carefully read all text in the image and extract the following information:

1. **Patient Name**: The name of the patient the bill was issued for.

2. **Service Date**: The date of service or statement date, as printed on the document.

3. **Provider**: The hospital, clinic, or practice that issued the bill.

4. **Charges**: Every billed line item, in the order it appears on the document. For each line item extract:
   - "name": the descriptive text of the line, including any billing code printed with it, e.g. "CT Scan - Head (CPT 70450)"
   - "amount": the total charged for the line as printed, e.g. "$850.00"
   - "description": any free-text explanation printed with the line, if present

5. **Subtotal**: The subtotal or total amount as printed on the document.

Return ONLY valid JSON in this exact format:
{
  "patient": "Full Name",
  "date": "as printed",
  "provider": "Provider Name",
  "charges": [
    {"id": 1, "name": "Line item text", "amount": "$0.00", "description": ""}
  ],
  "subtotal": "$0.00"
}

Important:
- Keep charges in document order and number ids from 1
- Keep amounts exactly as printed, including currency symbols
- If a billing code (CPT or NDC) is printed near a line item, include it in the name in parentheses, e.g. "(CPT 99285)"
- If you cannot find a field, use an empty string for that field
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// pdfToImage renders the first page of a PDF as a PNG image. Bills that
// span multiple pages are reduced to their first page.
func pdfToImage(pdfData []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}

	return buf.Bytes(), nil
}

// imageToPNG converts any supported image format to PNG.
func imageToPNG(imageData []byte, mimeType string) ([]byte, error) {
	var img image.Image
	var err error

	// HEIC/HEIF (common on iPhones) needs its own decoder; the standard
	// image package does not support it.
	if isHEICFormat(imageData) || isHEICMimeType(mimeType) {
		img, err = heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(imageData))
		if err != nil {
			if strings.Contains(err.Error(), "unknown format") || strings.Contains(err.Error(), "unsupported") {
				return nil, fmt.Errorf("unsupported document format. Supported formats: JPEG, PNG, GIF, HEIC, HEIF, PDF. Error: %w", err)
			}
			return nil, fmt.Errorf("decoding image: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}

	return buf.Bytes(), nil
}

// isHEICFormat checks the ftyp box brand for HEIC/HEIF magic bytes.
func isHEICFormat(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	if string(data[4:8]) == "ftyp" {
		brand := string(data[8:12])
		if brand == "heic" || brand == "heif" || brand == "mif1" || brand == "msf1" {
			return true
		}
	}
	return false
}

// isHEICMimeType checks if the MIME type indicates HEIC/HEIF format.
func isHEICMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return mimeType == "image/heic" || mimeType == "image/heif" ||
		strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// prepareDocument normalizes the MIME type and converts PDFs and non-PNG
// images to PNG so every provider sees the same input format. Returns
// the PNG data and whether a conversion occurred.
func prepareDocument(data []byte, contentType string) ([]byte, bool, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "" {
		mimeType = "image/jpeg" // default
	}

	if mimeType == "application/pdf" {
		pngData, err := pdfToImage(data)
		if err != nil {
			return nil, false, fmt.Errorf("converting PDF to image: %w", err)
		}
		return pngData, true, nil
	}

	if mimeType != "image/png" || isHEICFormat(data) || isHEICMimeType(mimeType) {
		pngData, err := imageToPNG(data, mimeType)
		if err != nil {
			return nil, false, fmt.Errorf("converting image to PNG: %w", err)
		}
		return pngData, true, nil
	}

	return data, false, nil
}
