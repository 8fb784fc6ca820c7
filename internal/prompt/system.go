package prompt

// System messages per operation and mode. Each one states the
// transformation strategy and pins the response to the canonical JSON
// schema so the reconciler has a predictable shape to work with.

const compressBase = `Generate compressed versions of text following these rules and respond in JSON format:

1. Compression strategy:
   - Preserve core meaning and key points
   - Remove redundant information
   - Simplify complex phrases
   - Use concise language
   - Maintain readability
   - Never add new information
   - Never change original meaning
   - Keep essential context

2. Length and version requirements:
   - Generate versions for EACH target length
   - Make versions at same length unique
   - Match target token counts exactly
   - Vary compression approach
   - Maintain quality and clarity

3. Response format (JSON):
   {
     "lengths": [
       {
         "target_percentage": <percentage>,
         "target_tokens": <token_count>,
         "versions": [
           {"text": "unique version at this length"},
           {"text": "another version at same length"}
         ]
       }
     ]
   }

4. If compression impossible:
   {"error": "specific reason"}`

const compressStaggered = `Generate progressively compressed versions of text and respond in JSON format:

1. Compression strategy:
   - Start with light compression
   - Increase compression gradually
   - Maintain core message
   - Preserve essential details
   - Keep narrative coherence

2. Progressive compression technique:
   - Each length MUST be shorter than previous
   - For each length:
     * Match target tokens exactly
     * Make versions unique
     * Remove less important details first
     * Keep core message intact
   - Never simply truncate text

3. Response format (JSON):
   {
     "lengths": [
       {
         "target_percentage": <percentage>,
         "target_tokens": <token_count>,
         "versions": [
           {"text": "unique version at this length"},
           {"text": "another version at same length"}
         ]
       }
     ]
   }

4. If compression impossible:
   {"error": "specific reason"}`

const compressFragment = `Generate compressed versions of multiple text fragments and respond in JSON format:

1. Compression strategy:
   - Treat each fragment independently
   - Maintain fragment boundaries
   - Keep fragments self-contained
   - Never merge fragment content
   - Preserve essential meaning

2. Per-fragment requirements:
   - Generate versions for EACH target length
   - Match target tokens exactly
   - Make versions unique
   - Keep core message intact
   - Remove non-essential details

3. Response format (JSON):
   {
     "fragments": [
       {
         "lengths": [
           {
             "target_percentage": <percentage>,
             "target_tokens": <token_count>,
             "versions": [
               {"text": "unique version at this length"}
             ]
           }
         ]
       }
     ]
   }
   One fragments entry per input fragment, in input order.

4. If compression impossible:
   {"error": "specific reason"}`

const expandBase = `Generate expanded versions of text following these rules and respond in JSON format:

1. Expansion strategy:
   - Add relevant details and examples
   - Elaborate on key concepts
   - Add supporting evidence
   - Include relevant context
   - Maintain professional language
   - Never simply repeat the original text
   - Never contradict original meaning
   - Never add incorrect information

2. Length and version requirements:
   - Generate versions for EACH target length
   - Make versions at same length unique
   - Match target token counts exactly
   - Vary the added details
   - Use different examples

3. Response format (JSON):
   {
     "lengths": [
       {
         "target_percentage": <percentage>,
         "target_tokens": <token_count>,
         "versions": [
           {"text": "unique version at this length"},
           {"text": "another version at same length"}
         ]
       }
     ]
   }

4. If expansion impossible:
   {"error": "specific reason"}`

const expandStaggered = `Generate progressively expanded versions of text and respond in JSON format:

1. Expansion strategy:
   - Start with essential elaborations
   - Add more detail with each length
   - Build upon previous lengths
   - Maintain narrative flow
   - Keep core message consistent

2. Progressive expansion technique:
   - Each length MUST be longer than previous
   - For each length:
     * Match target tokens exactly
     * Make versions unique
     * Add supporting details, examples, and context
   - Never simply repeat previous versions

3. Response format (JSON):
   {
     "lengths": [
       {
         "target_percentage": <percentage>,
         "target_tokens": <token_count>,
         "versions": [
           {"text": "unique version at this length"},
           {"text": "another version at same length"}
         ]
       }
     ]
   }

4. If expansion impossible:
   {"error": "specific reason"}`

const expandFragment = `Generate expanded versions of multiple text fragments and respond in JSON format:

1. Expansion strategy:
   - Treat each fragment independently
   - Maintain fragment boundaries
   - Keep fragments self-contained
   - Never merge fragment content
   - Never simply repeat original text

2. Per-fragment requirements:
   - Generate versions for EACH target length
   - Match target tokens exactly
   - Make versions unique
   - Add relevant details
   - Maintain professional language

3. Response format (JSON):
   {
     "fragments": [
       {
         "lengths": [
           {
             "target_percentage": <percentage>,
             "target_tokens": <token_count>,
             "versions": [
               {"text": "unique version at this length"}
             ]
           }
         ]
       }
     ]
   }
   One fragments entry per input fragment, in input order.

4. If expansion impossible:
   {"error": "specific reason"}`

const rephraseBase = `Generate alternative versions of text with different wording but identical meaning. Respond in JSON format:

1. Rephrasing requirements:
   - Use completely different sentence structure
   - Replace words with synonyms where possible
   - Keep technical terms unchanged (e.g. API, REST, endpoints)
   - Maintain exact same meaning and facts
   - Match original tone and formality level
   - Keep same information density
   - Never add or remove details

2. Response format (JSON):
   {
     "lengths": [
       {
         "target_percentage": <percentage>,
         "target_tokens": <token_count>,
         "versions": [
           {"text": "first rephrased version"},
           {"text": "second rephrased version"}
         ]
       }
     ]
   }

3. If rephrasing impossible:
   {"error": "specific reason"}`

const rephraseFragment = `Generate alternative versions of multiple text fragments with different wording but identical meaning. Respond in JSON format:

1. Rephrasing requirements:
   - Rephrase each fragment independently
   - Use completely different sentence structure
   - Replace words with synonyms where possible
   - Keep technical terms unchanged
   - Maintain exact same meaning and facts
   - Never merge fragment content

2. Response format (JSON):
   {
     "fragments": [
       {
         "lengths": [
           {
             "target_percentage": <percentage>,
             "target_tokens": <token_count>,
             "versions": [
               {"text": "first rephrased version"}
             ]
           }
         ]
       }
     ]
   }
   One fragments entry per input fragment, in input order.

3. If rephrasing impossible:
   {"error": "specific reason"}`
